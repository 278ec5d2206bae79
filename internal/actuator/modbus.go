package actuator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// ModbusConfig addresses the holding register the valve controller reads
// its setpoint from.
type ModbusConfig struct {
	Endpoint    string
	UnitID      uint8
	Register    uint16
	Timeout     time.Duration
	HardwareMax int
}

type registerWriter interface {
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// ModbusSink writes the angle to a single holding register over Modbus TCP.
// Writes are serialized.
type ModbusSink struct {
	mu       sync.Mutex
	closer   func() error
	client   registerWriter
	register uint16
	max      int
}

func NewModbusSink(cfg ModbusConfig) (*ModbusSink, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("actuator modbus: endpoint required")
	}
	if cfg.HardwareMax <= 0 {
		return nil, errors.New("actuator modbus: hardware max must be positive")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &ModbusSink{
		closer:   h.Close,
		client:   modbus.NewClient(h),
		register: cfg.Register,
		max:      cfg.HardwareMax,
	}, nil
}

func (s *ModbusSink) Apply(ctx context.Context, angle int) error {
	if err := checkAngle(angle, s.max); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.client.WriteSingleRegister(s.register, uint16(angle))
	return err
}

func (s *ModbusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
