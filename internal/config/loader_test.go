package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"anesthesia_controller/internal/control"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

const minimal = `
auth:
  signing_key: test-key
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, minimal), nil).Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, DriverLog, cfg.Actuator.Driver)
	assert.Equal(t, control.DefaultConfig(), cfg.Control.Engine())
	assert.True(t, cfg.Simulator.Enabled)
}

func TestLoad_OverridesControlSection(t *testing.T) {
	p := writeConfig(t, `
port: ":9000"
auth:
  signing_key: k
  token_ttl: 15m
  operators:
    nurse: secret
control:
  tick_period: 50ms
  gains:
    kp: 1.5
    ki: 0.2
    kd: 0
  thresholds:
    heart_rate:
      critical_low: 35
      low: 45
      target: 65
actuator:
  driver: modbus
  endpoint: 127.0.0.1:502
  unit_id: 3
  register: 40
`)
	cfg, err := NewLoader(p, nil).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, map[string]string{"nurse": "secret"}, cfg.Auth.Operators)
	assert.Equal(t, 50*time.Millisecond, cfg.Control.TickPeriod)
	assert.Equal(t, control.Gains{Kp: 1.5, Ki: 0.2}, cfg.Control.Gains)

	hr := cfg.Control.Thresholds.HeartRate
	require.NotNil(t, hr.CriticalLow)
	assert.Equal(t, 35.0, *hr.CriticalLow)
	assert.Equal(t, 45.0, hr.Low)
	assert.Equal(t, 65.0, hr.Target)
	// untouched keys keep their defaults
	assert.Equal(t, 100.0, hr.High)
	assert.Equal(t, control.DefaultThresholds().MAP, cfg.Control.Thresholds.MAP)

	assert.Equal(t, uint8(3), cfg.Actuator.UnitID)
	assert.Equal(t, uint16(40), cfg.Actuator.Register)
}

func TestLoad_RemovesCriticalBoundsNotWritten(t *testing.T) {
	p := writeConfig(t, minimal+`
control:
  thresholds:
    heart_rate:
      low: 50
      target: 70
      high: 100
      critical_high: 140
    map:
      low: 60
      target: 85
      high: 110
`)
	cfg, err := NewLoader(p, nil).Load()
	require.NoError(t, err)

	th := cfg.Control.Thresholds
	assert.Nil(t, th.HeartRate.CriticalLow)
	require.NotNil(t, th.HeartRate.CriticalHigh)
	assert.Equal(t, 140.0, *th.HeartRate.CriticalHigh)
	assert.Nil(t, th.MAP.CriticalLow)
	assert.Nil(t, th.MAP.CriticalHigh)
	// bands absent from the file keep their default critical bounds
	assert.Equal(t, control.DefaultThresholds().SpO2, th.SpO2)
	assert.Equal(t, control.DefaultThresholds().RespiratoryRate, th.RespiratoryRate)

	// the defaults themselves are not mutated
	assert.NotNil(t, control.DefaultThresholds().HeartRate.CriticalLow)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("INFUSION_PORT", "7070")
	t.Setenv("INFUSION_AUTH_SIGNING_KEY", "from-env")

	cfg, err := NewLoader(writeConfig(t, "log_level: debug\n"), nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "from-env", cfg.Auth.SigningKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"missing signing key", "port: \"8080\"\n", ErrInvalidConfig},
		{"threshold order", minimal + `
control:
  thresholds:
    map:
      low: 90
`, control.ErrInvalidThresholds},
		{"negative gain", minimal + `
control:
  gains:
    kp: -1
`, control.ErrInvalidGains},
		{"unknown driver", minimal + `
actuator:
  driver: can
`, ErrInvalidConfig},
		{"modbus without endpoint", minimal + `
actuator:
  driver: modbus
`, ErrInvalidConfig},
		{"bad timing", minimal + `
control:
  signal_loss_timeout: 500ms
`, control.ErrInvalidTiming},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tc.content), nil).Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yml"), nil).Load()
	assert.Error(t, err)
}

func TestReload_AppliesValidAndDropsInvalid(t *testing.T) {
	p := writeConfig(t, minimal)
	l := NewLoader(p, nil)
	_, err := l.Load()
	require.NoError(t, err)

	var got []*Config
	onChange := func(c *Config) { got = append(got, c) }
	write := func(content string) {
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		require.NoError(t, l.v.ReadInConfig())
		l.reload(fsnotify.Event{Name: p, Op: fsnotify.Write}, onChange)
	}

	write(minimal + `
control:
  gains:
    kp: 3
`)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Control.Gains.Kp)

	write(minimal + `
control:
  thresholds:
    spo2:
      low: 99
`)
	assert.Len(t, got, 1, "invalid reload must not reach the callback")

	l.reload(fsnotify.Event{Name: p, Op: fsnotify.Chmod}, onChange)
	assert.Len(t, got, 1)
}
