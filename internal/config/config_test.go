package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Default().Validate())
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Server, cfg.Server)
	assert.Equal(t, d.Log, cfg.Log)
	assert.Equal(t, d.Demo, cfg.Demo)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "/-/", cfg.Admin.Prefix)
	assert.Empty(t, cfg.Admin.ReadTokens)
}

func TestInit_File(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "inflightd.yaml", `
server:
  addr: 0.0.0.0:9000
  shutdown_timeout: 5s
admin:
  addr: 127.0.0.1:9001
  read_tokens: [r1, r2]
log:
  level: debug
  format: json
demo:
  step_delay: 50ms
`)
	v := viper.New()
	require.NoError(t, Init(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "http", cfg.Server.TrackRoot, "default kept")
	assert.Equal(t, "127.0.0.1:9001", cfg.Admin.Addr)
	assert.Equal(t, []string{"r1", "r2"}, cfg.Admin.ReadTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50*time.Millisecond, cfg.Demo.StepDelay)
	assert.Equal(t, 3, cfg.Demo.Fanout)
}

func TestInit_MissingFile(t *testing.T) {
	t.Parallel()

	err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read ")
}

func TestInit_EnvOverrides(t *testing.T) {
	t.Setenv("INFLIGHT_LOG_LEVEL", "warn")
	t.Setenv("INFLIGHT_SERVER_ADDR", "127.0.0.1:7000")

	path := writeFile(t, t.TempDir(), "c.yaml", "log:\n  level: debug\n")
	v := viper.New()
	require.NoError(t, Init(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.Set("log.level", "loud")
	v.Set("server.addr", "8080")
	v.Set("demo.fanout", 0)

	cfg, err := Load(v)
	assert.Nil(t, cfg)
	require.ErrorIs(t, err, ErrInvalid)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"server.addr", "log.level", "demo.fanout"}, fields)
	assert.Contains(t, err.Error(), "config: 3 validation errors:\n  1. server.addr: must be host:port (got: 8080)")
}

func TestValidate_Admin(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Admin.Prefix = "admin"
	cfg.Admin.ReadTokens = []string{""}
	errs := cfg.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "admin.prefix", errs[0].Field)
	assert.Equal(t, "admin.tokens", errs[1].Field)

	cfg.Admin.Enabled = false
	assert.Empty(t, cfg.Validate())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "inflightd.yaml", "log:\n  level: info\n")
	v := viper.New()
	require.NoError(t, Init(v, path))

	var (
		mu     sync.Mutex
		levels []string
	)
	Watch(v, func(cfg *Config, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		levels = append(levels, cfg.Log.Level)
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatch_NoFile(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	Watch(v, func(*Config, error) { t.Error("unexpected reload") })
	assert.Panics(t, func() { Watch(v, nil) })
}
