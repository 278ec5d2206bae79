package actuator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anesthesia_controller/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegisters struct {
	mu     sync.Mutex
	writes map[uint16][]uint16
	err    error
}

func (f *fakeRegisters) WriteSingleRegister(address, value uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.writes == nil {
		f.writes = map[uint16][]uint16{}
	}
	f.writes[address] = append(f.writes[address], value)
	return []byte{byte(value >> 8), byte(value)}, nil
}

func TestModbusSink_WritesRegister(t *testing.T) {
	regs := &fakeRegisters{}
	s := &ModbusSink{client: regs, register: 40, max: 180}

	require.NoError(t, s.Apply(context.Background(), 35))
	require.NoError(t, s.Apply(context.Background(), 0))
	assert.Equal(t, []uint16{35, 0}, regs.writes[40])

	err := s.Apply(context.Background(), 181)
	assert.ErrorIs(t, err, ErrAngleOutOfRange)
	assert.ErrorIs(t, s.Apply(context.Background(), -1), ErrAngleOutOfRange)
	assert.Len(t, regs.writes[40], 2)

	assert.NoError(t, s.Close())
}

func TestModbusSink_PropagatesErrors(t *testing.T) {
	boom := errors.New("exception 2")
	s := &ModbusSink{client: &fakeRegisters{err: boom}, max: 180}
	assert.ErrorIs(t, s.Apply(context.Background(), 10), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Apply(ctx, 10), context.Canceled)
}

func TestNewModbusSink_RequiresEndpoint(t *testing.T) {
	_, err := NewModbusSink(ModbusConfig{HardwareMax: 180})
	assert.Error(t, err)
	_, err = NewModbusSink(ModbusConfig{Endpoint: "127.0.0.1:502"})
	assert.Error(t, err)
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(logger.Nop())
	assert.NoError(t, s.Apply(context.Background(), 20))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Apply(ctx, 20))
}

func TestMailbox_OfferReplacesPending(t *testing.T) {
	m := NewMailbox()
	m.Offer(5)
	m.Offer(10)
	m.Offer(15)

	select {
	case got := <-m.ch:
		assert.Equal(t, 15, got)
	default:
		t.Fatal("expected a pending command")
	}
	select {
	case got := <-m.ch:
		t.Fatalf("unexpected second command %d", got)
	default:
	}
}

type recordingSink struct {
	mu     sync.Mutex
	angles []int
	fail   int
}

func (r *recordingSink) Apply(_ context.Context, angle int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("bus busy")
	}
	r.angles = append(r.angles, angle)
	return nil
}

func (r *recordingSink) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.angles...)
}

func TestMailbox_RunSkipsRepeatsAndRetries(t *testing.T) {
	m := NewMailbox()
	sink := &recordingSink{fail: 1}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, sink, logger.Nop())
		close(done)
	}()

	send := func(angle int) {
		m.Offer(angle)
		require.Eventually(t, func() bool { return len(m.ch) == 0 }, time.Second, time.Millisecond)
	}
	send(5) // fails
	send(5)
	send(5)
	send(10)

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, []int{5, 10}, sink.snapshot())
}
