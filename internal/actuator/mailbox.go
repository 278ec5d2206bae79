package actuator

import (
	"context"

	"anesthesia_controller/internal/logger"
)

// Mailbox hands the latest command from the control loop to the sink without
// ever blocking the loop. A pending command that has not been picked up yet
// is replaced by a newer one.
type Mailbox struct {
	ch chan int
}

func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan int, 1)}
}

// Offer never blocks.
func (m *Mailbox) Offer(angle int) {
	for {
		select {
		case m.ch <- angle:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// Run applies commands to sink until ctx is done. Repeats of the last
// successfully applied angle are skipped; a failed write is retried on the
// next offer.
func (m *Mailbox) Run(ctx context.Context, sink Sink, log *logger.Logger) {
	last, applied := 0, false
	for {
		select {
		case <-ctx.Done():
			return
		case angle := <-m.ch:
			if applied && angle == last {
				continue
			}
			if err := sink.Apply(ctx, angle); err != nil {
				applied = false
				if log != nil && ctx.Err() == nil {
					log.Errorw("actuator_write_failed", "angle", angle, "err", err)
				}
				continue
			}
			last, applied = angle, true
		}
	}
}
