package config

import (
	"errors"
	"fmt"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/patient"
)

// ErrInvalidConfig wraps every validation failure outside the control tables.
var ErrInvalidConfig = errors.New("invalid config")

// Actuator drivers.
const (
	DriverLog    = "log"
	DriverModbus = "modbus"
)

type Config struct {
	Port      string          `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Control   ControlConfig   `mapstructure:"control"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Actuator  ActuatorConfig  `mapstructure:"actuator"`
	Events    EventsConfig    `mapstructure:"events"`
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	// Operators maps username to password. bcrypt hashes are accepted as is.
	Operators map[string]string `mapstructure:"operators"`
}

type ControlConfig struct {
	TickPeriod        time.Duration          `mapstructure:"tick_period"`
	SafetyPeriod      time.Duration          `mapstructure:"safety_period"`
	ControlPeriod     time.Duration          `mapstructure:"control_period"`
	StaleAfter        time.Duration          `mapstructure:"stale_after"`
	SignalLossTimeout time.Duration          `mapstructure:"signal_loss_timeout"`
	AlarmDebounce     time.Duration          `mapstructure:"alarm_debounce"`
	Gains             control.Gains          `mapstructure:"gains"`
	IntegralMax       float64                `mapstructure:"integral_max"`
	Infusion          control.InfusionLimits `mapstructure:"infusion"`
	Thresholds        control.Thresholds     `mapstructure:"thresholds"`
}

type SimulatorConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Period   time.Duration  `mapstructure:"period"`
	Scenario string         `mapstructure:"scenario"` // optional YAML scenario path
	Patient  patient.Config `mapstructure:"patient"`
}

type ActuatorConfig struct {
	Driver   string        `mapstructure:"driver"` // log | modbus
	Endpoint string        `mapstructure:"endpoint"`
	UnitID   uint8         `mapstructure:"unit_id"`
	Register uint16        `mapstructure:"register"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type EventsConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// Default returns a complete configuration with every documented default.
func Default() Config {
	ec := control.DefaultConfig()
	return Config{
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "console",
		HTTP: HTTPConfig{
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL:  time.Hour,
			Operators: map[string]string{},
		},
		Control: ControlConfig{
			TickPeriod:        ec.TickPeriod,
			SafetyPeriod:      ec.SafetyPeriod,
			ControlPeriod:     ec.ControlPeriod,
			StaleAfter:        ec.StaleAfter,
			SignalLossTimeout: ec.SignalLossTimeout,
			AlarmDebounce:     ec.AlarmDebounce,
			Gains:             ec.Gains,
			IntegralMax:       ec.IntegralMax,
			Infusion:          ec.Limits,
			Thresholds:        ec.Thresholds,
		},
		Simulator: SimulatorConfig{
			Enabled: true,
			Period:  500 * time.Millisecond,
			Patient: patient.DefaultConfig(),
		},
		Actuator: ActuatorConfig{
			Driver:  DriverLog,
			UnitID:  1,
			Timeout: time.Second,
		},
		Events: EventsConfig{Capacity: 1024},
	}
}

// Engine converts the control section to the engine configuration.
func (c ControlConfig) Engine() control.Config {
	return control.Config{
		TickPeriod:        c.TickPeriod,
		SafetyPeriod:      c.SafetyPeriod,
		ControlPeriod:     c.ControlPeriod,
		StaleAfter:        c.StaleAfter,
		SignalLossTimeout: c.SignalLossTimeout,
		AlarmDebounce:     c.AlarmDebounce,
		Thresholds:        c.Thresholds,
		Gains:             c.Gains,
		IntegralMax:       c.IntegralMax,
		Limits:            c.Infusion,
	}
}

func (c Config) Validate() error {
	if err := c.Control.Engine().Validate(); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	switch {
	case c.Port == "":
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	case c.Auth.SigningKey == "":
		return fmt.Errorf("%w: auth.signing_key is required", ErrInvalidConfig)
	case c.Auth.TokenTTL <= 0:
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalidConfig)
	case c.Events.Capacity <= 0:
		return fmt.Errorf("%w: events.capacity must be positive", ErrInvalidConfig)
	}
	switch c.Actuator.Driver {
	case DriverLog:
	case DriverModbus:
		if c.Actuator.Endpoint == "" {
			return fmt.Errorf("%w: actuator.endpoint is required for the modbus driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown actuator driver %q", ErrInvalidConfig, c.Actuator.Driver)
	}
	if c.Simulator.Enabled {
		if c.Simulator.Period <= 0 {
			return fmt.Errorf("%w: simulator.period must be positive", ErrInvalidConfig)
		}
		if err := c.Simulator.Patient.Validate(); err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
	}
	return nil
}
