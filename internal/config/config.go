// Package config loads inflightd configuration from defaults, an optional YAML file, INFLIGHT_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: INFLIGHT_LOG_LEVEL for log.level.
const EnvPrefix = "INFLIGHT"

// FileName is the config file searched for when none is given, without extension.
const FileName = "inflightd"

// Config is the complete inflightd configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Log    LogConfig    `mapstructure:"log"`
	Demo   DemoConfig   `mapstructure:"demo"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrackRoot is the root task name of tracked requests.
	TrackRoot string `mapstructure:"track_root"`
}

type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Prefix mounts admin on the main server. Ignored when Addr is set.
	Prefix string `mapstructure:"prefix"`
	// Addr serves admin on its own listener.
	Addr string `mapstructure:"addr"`
	// ReadTokens guard reads; empty denies every read.
	ReadTokens []string `mapstructure:"read_tokens"`
	// WriteTokens guard /log/level/set; empty leaves it unmounted.
	WriteTokens       []string `mapstructure:"write_tokens"`
	TaskAllowPrefixes []string `mapstructure:"task_allow_prefixes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DemoConfig drives the /work endpoint.
type DemoConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Fanout    int           `mapstructure:"fanout"`
	Steps     int           `mapstructure:"steps"`
	StepDelay time.Duration `mapstructure:"step_delay"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 30 * time.Second,
			TrackRoot:       "http",
		},
		Admin: AdminConfig{
			Enabled: true,
			Prefix:  "/-/",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Demo: DemoConfig{
			Enabled:   true,
			Fanout:    3,
			Steps:     5,
			StepDelay: 200 * time.Millisecond,
		},
	}
}

// SetDefaults registers Default() in v, so every key is known to Unmarshal and to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.track_root", d.Server.TrackRoot)

	v.SetDefault("admin.enabled", d.Admin.Enabled)
	v.SetDefault("admin.prefix", d.Admin.Prefix)
	v.SetDefault("admin.addr", d.Admin.Addr)
	v.SetDefault("admin.read_tokens", d.Admin.ReadTokens)
	v.SetDefault("admin.write_tokens", d.Admin.WriteTokens)
	v.SetDefault("admin.task_allow_prefixes", d.Admin.TaskAllowPrefixes)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)

	v.SetDefault("demo.enabled", d.Demo.Enabled)
	v.SetDefault("demo.fanout", d.Demo.Fanout)
	v.SetDefault("demo.steps", d.Demo.Steps)
	v.SetDefault("demo.step_delay", d.Demo.StepDelay)
}

// Init prepares v: defaults, environment binding, and the config file. file may be empty, in
// which case inflightd.yaml is searched in the working directory and /etc/inflight. A missing
// searched file is not an error; a missing explicit file is.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/inflight")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", describe(file), err)
	}
	return nil
}

func describe(file string) string {
	if file == "" {
		return FileName + ".yaml"
	}
	return file
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// Watch reloads the config file whenever it changes and passes the result to onChange. It does
// nothing when no file was read.
//
// onChange runs on the watcher goroutine; a decode or validation failure arrives as err with a
// nil cfg.
func Watch(v *viper.Viper, onChange func(cfg *Config, err error)) {
	if onChange == nil {
		panic("config: nil onChange")
	}
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Load(v))
	})
	v.WatchConfig()
}
