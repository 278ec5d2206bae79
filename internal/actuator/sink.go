// Package actuator delivers the commanded infusion angle to hardware.
package actuator

import (
	"context"
	"errors"
	"fmt"

	"anesthesia_controller/internal/logger"
)

var ErrAngleOutOfRange = errors.New("actuator angle out of range")

// Sink applies one commanded angle in degrees.
type Sink interface {
	Apply(ctx context.Context, angle int) error
}

// LogSink only logs the commands. It stands in for hardware in demos.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Apply(ctx context.Context, angle int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infow("actuator_command", "angle", angle)
	}
	return nil
}

func checkAngle(angle, max int) error {
	if angle < 0 || angle > max {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrAngleOutOfRange, angle, max)
	}
	return nil
}
