package inflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evan-idocoding/inflight/httpx"
	"github.com/evan-idocoding/inflight/rt/safego"
	"github.com/evan-idocoding/inflight/rt/taskreg"
)

var (
	// ErrAlreadyStarted indicates Start/Run was called more than once.
	ErrAlreadyStarted = errors.New("inflight: service already started")
	// ErrNotStarted indicates Wait was called before Start.
	ErrNotStarted = errors.New("inflight: service not started")
)

// Service is a runnable, shutdownable assembled service.
type Service struct {
	PrimaryServer *http.Server
	ExtraServers  []*http.Server
	AdminServer   *http.Server
	AdminHandler  http.Handler

	Registry    *taskreg.Registry
	LogLevelVar *slog.LevelVar
	Logger      *slog.Logger

	hooks           ServiceHooks
	signals         SignalSpec
	shutdownTimeout time.Duration

	servers      []managedServer // primary + extra + standalone admin
	adminOnlySrv *http.Server

	mu        sync.Mutex
	started   bool
	startStop context.CancelFunc
	stopping  bool

	// listeners holds the bound listener per server; only these are shut down.
	listeners map[*http.Server]net.Listener
	serving   errgroup.Group

	primaryErr error

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	shutdownErr  error

	doneCh  chan struct{}
	waitErr error
}

type managedServer struct {
	name     string
	critical bool
	srv      *http.Server
}

// NewService assembles a runnable Service.
//
// The primary handler is wrapped with request id, per-request task tracking and panic
// recovery, in that order. Admin, when enabled, is mounted under a prefix of the primary server
// (default "/-/") or served standalone, and is not tracked.
//
// Assembly errors panic. Runtime errors are returned from Start/Wait/Run/Shutdown.
func NewService(spec ServiceSpec) *Service {
	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := spec.Registry
	if reg == nil {
		reg = taskreg.New(taskreg.WithLogger(logger))
	}
	lv := spec.LogLevelVar

	s := &Service{
		Registry:        reg,
		LogLevelVar:     lv,
		Logger:          logger,
		hooks:           spec.Hooks,
		signals:         spec.Signals,
		shutdownTimeout: resolveDuration(spec.ShutdownTimeout, 30*time.Second),
		shutdownCh:      make(chan struct{}),
		doneCh:          make(chan struct{}),
		listeners:       make(map[*http.Server]net.Listener),
	}

	var adminHandler http.Handler
	var adminMountPrefix string
	adminEnabled := spec.Admin != nil
	if adminEnabled {
		if spec.Admin.Mount != nil && spec.Admin.Server != nil {
			panic("inflight: ServiceSpec.Admin: Mount and Server are mutually exclusive")
		}
		if spec.Admin.Mount == nil && spec.Admin.Server == nil {
			if spec.Primary == nil {
				panic("inflight: ServiceSpec.Admin: no Primary server, use Admin.Server")
			}
			spec.Admin.Mount = &AdminMountSpec{}
		}
		as := spec.Admin.Spec
		if as.Registry == nil {
			as.Registry = reg
		}
		if as.LogLevelVar == nil {
			as.LogLevelVar = lv
		}
		if as.Logger == nil {
			as.Logger = logger
		}
		adminHandler = NewDefaultAdmin(as)
		s.AdminHandler = adminHandler
		if spec.Admin.Mount != nil {
			adminMountPrefix = spec.Admin.Mount.Prefix
			if strings.TrimSpace(adminMountPrefix) == "" {
				adminMountPrefix = DefaultAdminPrefix
			}
		}
	}

	if spec.Primary != nil {
		srv, name, critical := assembleHTTPServerOrPanic(*spec.Primary, "primary", nil)
		h := srv.Handler
		if h == nil {
			h = http.DefaultServeMux
		}
		h = httpx.Wrap(h,
			httpx.RequestID(),
			trackMiddleware(reg, spec.Track, logger),
			httpx.Recover(httpx.WithRecoverLogger(logger)),
		)
		if adminEnabled && spec.Admin.Mount != nil {
			h = mountPrefix(adminMountPrefix, adminHandler, h)
		}
		srv.Handler = h
		s.PrimaryServer = srv
		s.servers = append(s.servers, managedServer{name: name, critical: critical, srv: srv})
	} else if adminEnabled && spec.Admin.Mount != nil {
		panic("inflight: ServiceSpec.Admin.Mount requires Primary")
	}

	for i, sp := range spec.Extra {
		if sp == nil {
			panic(fmt.Sprintf("inflight: ServiceSpec.Extra[%d] is nil", i))
		}
		srv, name, critical := assembleHTTPServerOrPanic(*sp, fmt.Sprintf("extra#%d", i), nil)
		s.ExtraServers = append(s.ExtraServers, srv)
		s.servers = append(s.servers, managedServer{name: name, critical: critical, srv: srv})
	}

	if adminEnabled && spec.Admin.Server != nil {
		srv, name, critical := assembleHTTPServerOrPanic(*spec.Admin.Server, "admin", adminHandler)
		s.AdminServer = srv
		s.adminOnlySrv = srv
		s.servers = append(s.servers, managedServer{name: name, critical: critical, srv: srv})
	}
	return s
}

func trackMiddleware(reg *taskreg.Registry, spec TrackSpec, logger *slog.Logger) httpx.Middleware {
	if spec.Disable {
		return nil
	}
	opts := []httpx.TrackOption{httpx.WithTrackLogger(logger)}
	if spec.Root != "" {
		opts = append(opts, httpx.WithTrackRoot(spec.Root))
	}
	if spec.Skip != nil {
		opts = append(opts, httpx.WithTrackSkip(spec.Skip))
	}
	return httpx.Track(reg, opts...)
}

// Run starts the service, waits until it stops on its own, ctx is done, or a signal arrives,
// then shuts it down.
//
// It is not idempotent. If called after Start, it returns ErrAlreadyStarted.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Start(ctx); err != nil {
		return err
	}

	sigCh, stopSignals := s.runSignalWatcher()
	defer stopSignals()

	select {
	case <-s.doneCh:
	case <-ctx.Done():
		s.recordPrimary(ctx.Err())
		_ = s.Shutdown(context.Background())
	case sig := <-sigCh:
		s.Logger.Info("inflight: shutting down", slog.String("signal", sig.String()))
		_ = s.Shutdown(context.Background())
	}
	return s.Wait()
}

// Start runs the OnStart hooks, binds every server, and starts serving. It is not idempotent.
//
// If a hook or a bind fails, the servers bound so far are shut down and the error is returned.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	var startCtx context.Context
	startCtx, s.startStop = context.WithCancel(ctx)
	s.mu.Unlock()

	for i, h := range s.hooks.OnStart {
		if h == nil {
			continue
		}
		if err := s.callHook(startCtx, fmt.Sprintf("OnStart[%d]", i), h); err != nil {
			err = fmt.Errorf("inflight: OnStart[%d]: %w", i, err)
			s.recordPrimary(err)
			s.initiateShutdown()
			return err
		}
	}

	for _, ms := range s.servers {
		if err := s.startOneServer(ms); err != nil {
			s.recordPrimary(err)
			s.initiateShutdown()
			return err
		}
	}
	return nil
}

// Wait waits until the service fully stops.
//
// It is idempotent. If Start was never called, it returns ErrNotStarted.
func (s *Service) Wait() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

// Shutdown triggers shutdown and waits for it, bounded by ctx. It is idempotent.
//
// If Start was never called, Shutdown returns nil.
func (s *Service) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.initiateShutdown()

	select {
	case <-s.shutdownCh:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.shutdownErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) startOneServer(ms managedServer) error {
	ln, err := net.Listen("tcp", ms.srv.Addr)
	if err != nil {
		return fmt.Errorf("inflight: server %q listen %q: %w", ms.name, ms.srv.Addr, err)
	}

	s.mu.Lock()
	s.listeners[ms.srv] = ln
	s.mu.Unlock()

	s.Logger.Info("inflight: serving", slog.String("server", ms.name), slog.String("addr", ln.Addr().String()))
	s.serving.Go(func() error {
		return s.onServeExit(ms, ms.srv.Serve(ln))
	})
	return nil
}

// Addr returns the bound address of srv, or "" when it is not listening.
func (s *Service) Addr(srv *http.Server) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ln, ok := s.listeners[srv]; ok {
		return ln.Addr().String()
	}
	return ""
}

func (s *Service) onServeExit(ms managedServer, err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return nil
	}
	if s.hooks.OnServeError != nil {
		s.hooks.OnServeError(ms.name, err, ms.critical)
	}
	if !ms.critical {
		s.Logger.Warn("inflight: non-critical server stopped", slog.String("server", ms.name), slog.Any("err", err))
		return nil
	}
	err = fmt.Errorf("inflight: server %q: %w", ms.name, err)
	s.recordPrimary(err)
	s.initiateShutdown()
	return err
}

func (s *Service) recordPrimary(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.primaryErr == nil {
		s.primaryErr = err
	}
	s.mu.Unlock()
}

func (s *Service) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		go s.doShutdown()
	})
}

func (s *Service) doShutdown() {
	s.mu.Lock()
	stop := s.startStop
	s.stopping = true
	listeners := make(map[*http.Server]net.Listener, len(s.listeners))
	for srv, ln := range s.listeners {
		listeners[srv] = ln
	}
	s.mu.Unlock()
	if stop != nil {
		stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var (
		errs []error
		mu   sync.Mutex
		wg   sync.WaitGroup
	)
	shutdownOne := func(ms managedServer) {
		defer wg.Done()
		ln, ok := listeners[ms.srv]
		if !ok {
			return
		}
		if err := ms.srv.Shutdown(ctx); err != nil {
			_ = ms.srv.Close()
			mu.Lock()
			errs = append(errs, fmt.Errorf("server %q shutdown: %w", ms.name, err))
			mu.Unlock()
		}
		// Covers a Shutdown that ran before Serve started tracking the listener.
		_ = ln.Close()
	}

	// Standalone admin goes last so operators can inspect in-flight tasks while the rest drains.
	var adminMS *managedServer
	for i, ms := range s.servers {
		if ms.srv == s.adminOnlySrv {
			adminMS = &s.servers[i]
			continue
		}
		wg.Add(1)
		go shutdownOne(ms)
	}
	wg.Wait()

	for i, h := range s.hooks.OnShutdown {
		if h == nil {
			continue
		}
		if err := s.callHook(ctx, fmt.Sprintf("OnShutdown[%d]", i), h); err != nil {
			errs = append(errs, fmt.Errorf("OnShutdown[%d]: %w", i, err))
		}
	}

	s.logLeftoverTasks()

	if adminMS != nil {
		wg.Add(1)
		shutdownOne(*adminMS)
	}
	_ = s.serving.Wait()

	shutdownErr := errors.Join(errs...)

	s.mu.Lock()
	s.shutdownErr = shutdownErr
	s.waitErr = errors.Join(s.primaryErr, shutdownErr)
	s.mu.Unlock()

	close(s.shutdownCh)
	close(s.doneCh)
}

// logLeftoverTasks reports tasks still registered once the servers have drained.
func (s *Service) logLeftoverTasks() {
	n := 0
	for snap := range s.Registry.All() {
		n++
		s.Logger.Warn("inflight: task still registered at shutdown",
			slog.Uint64("task_id", uint64(snap.ID)),
			slog.String("name", snap.Name),
			slog.String("state", snap.State),
			slog.String("source", snap.Location.String()),
		)
	}
	if n > 0 {
		s.Logger.Warn("inflight: tasks still registered at shutdown", slog.Int("count", n))
	}
}

func (s *Service) callHook(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	safego.RunErr(ctx, fn,
		safego.WithName(name),
		safego.WithLogger(s.Logger),
		safego.WithReportContextCancel(true),
		safego.WithErrorHandler(func(_ context.Context, info safego.ErrorInfo) { err = info.Err }),
		safego.WithPanicHandler(func(_ context.Context, info safego.PanicInfo) {
			err = fmt.Errorf("panic: %v", info.Value)
		}),
	)
	return err
}

func (s *Service) runSignalWatcher() (<-chan os.Signal, func()) {
	if s.signals.Disable {
		return nil, func() {}
	}
	sigs := s.signals.Signals
	if len(sigs) == 0 {
		sigs = defaultSignals()
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	return ch, func() { signal.Stop(ch) }
}
