package config

import (
	"fmt"
	"strings"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. INFUSION_PORT or
// INFUSION_AUTH_SIGNING_KEY.
const EnvPrefix = "INFUSION"

// Loader reads config.yml through viper and keeps watching it for changes.
type Loader struct {
	v   *viper.Viper
	log *logger.Logger
}

// NewLoader uses path when given, otherwise configs/config.yml.
func NewLoader(path string, log *logger.Logger) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if log == nil {
		log = logger.Nop()
	}
	return &Loader{v: v, log: log}
}

// setDefaults registers the scalar keys that may be set from the environment
// alone.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("auth.signing_key", d.Auth.SigningKey)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("simulator.enabled", d.Simulator.Enabled)
	v.SetDefault("simulator.scenario", d.Simulator.Scenario)
	v.SetDefault("actuator.driver", d.Actuator.Driver)
	v.SetDefault("actuator.endpoint", d.Actuator.Endpoint)
	v.SetDefault("events.capacity", d.Events.Capacity)
}

// Load reads the file and returns a validated configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return l.decode()
}

// File is the config file in use, empty before Load.
func (l *Loader) File() string { return l.v.ConfigFileUsed() }

func (l *Loader) decode() (*Config, error) {
	cfg := Default()
	l.clearCriticalBounds(&cfg.Control.Thresholds)
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// clearCriticalBounds drops the default critical bounds of every parameter
// the file configures, so a band written without critical_low or
// critical_high has no such bound. Bands the file omits keep their defaults.
func (l *Loader) clearCriticalBounds(t *control.Thresholds) {
	bands := map[control.Parameter]*control.ThresholdSpec{
		control.ParamHeartRate:       &t.HeartRate,
		control.ParamMAP:             &t.MAP,
		control.ParamRespiratoryRate: &t.RespiratoryRate,
		control.ParamSpO2:            &t.SpO2,
	}
	for p, band := range bands {
		if l.v.IsSet("control.thresholds." + string(p)) {
			band.CriticalLow, band.CriticalHigh = nil, nil
		}
	}
}

// Watch calls onChange with every successfully reloaded configuration. A
// reload that fails to decode or validate is logged and dropped, so the
// previous values stay active.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) { l.reload(e, onChange) })
	l.v.WatchConfig()
}

func (l *Loader) reload(e fsnotify.Event, onChange func(*Config)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	cfg, err := l.decode()
	if err != nil {
		l.log.Errorw("config_reload_rejected", "file", e.Name, "err", err)
		return
	}
	l.log.Infow("config_reloaded", "file", e.Name)
	onChange(cfg)
}
