package main

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/evan-idocoding/inflight"
	"github.com/evan-idocoding/inflight/internal/config"
	"github.com/evan-idocoding/inflight/internal/logging"
	"github.com/evan-idocoding/inflight/rt/taskreg"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			lg, err := logging.New(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			})
			if err != nil {
				return err
			}
			defer lg.Close()

			svc := newService(cfg, lg)
			config.Watch(a.v, func(next *config.Config, err error) {
				if err != nil {
					lg.Warn("inflightd: config reload rejected", slog.Any("err", err))
					return
				}
				if err := lg.SetLevel(next.Log.Level); err != nil {
					lg.Warn("inflightd: config reload rejected", slog.Any("err", err))
					return
				}
				lg.Info("inflightd: config reloaded", slog.String("log.level", next.Log.Level))
			})
			return svc.Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address (server.addr)")
	f.String("admin-addr", "", "serve admin on its own address (admin.addr)")
	f.String("log-level", "", "debug|info|warn|error (log.level)")
	f.String("log-format", "", "text|json (log.format)")
	a.bindFlags(f, map[string]string{
		"server.addr": "addr",
		"admin.addr":  "admin-addr",
		"log.level":   "log-level",
		"log.format":  "log-format",
	})
	return cmd
}

func newService(cfg *config.Config, lg *logging.Logger) *inflight.Service {
	reg := taskreg.New(taskreg.WithLogger(lg.Logger))

	mux := http.NewServeMux()
	mux.Handle("GET /hello", helloHandler())
	if cfg.Demo.Enabled {
		mux.Handle("GET /work", workHandler(reg, cfg.Demo))
	}

	spec := inflight.ServiceSpec{
		Registry:        reg,
		Logger:          lg.Logger,
		LogLevelVar:     lg.Level,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Primary:         &inflight.HTTPServerSpec{Addr: cfg.Server.Addr, Handler: mux},
		Track:           inflight.TrackSpec{Root: cfg.Server.TrackRoot},
	}
	if cfg.Admin.Enabled {
		spec.Admin = adminSpec(cfg.Admin)
	}
	return inflight.NewService(spec)
}

func adminSpec(c config.AdminConfig) *inflight.ServiceAdminSpec {
	as := &inflight.ServiceAdminSpec{
		Spec: inflight.AdminSpec{
			ReadGuard:         inflight.Tokens(c.ReadTokens),
			TaskAllowPrefixes: c.TaskAllowPrefixes,
		},
	}
	if len(c.WriteTokens) > 0 {
		as.Spec.Writes = &inflight.AdminWriteSpec{
			Guard:             inflight.Tokens(c.WriteTokens),
			EnableLogLevelSet: true,
		}
	}
	if c.Addr != "" {
		as.Server = &inflight.HTTPServerSpec{Name: "admin", Addr: c.Addr}
	} else {
		as.Mount = &inflight.AdminMountSpec{Prefix: c.Prefix}
	}
	return as
}
