package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gorilla/handlers"

	"globaleaks/tlsworker/pkg/config"
	"globaleaks/tlsworker/pkg/lifecycle"
	"globaleaks/tlsworker/pkg/listener"
	"globaleaks/tlsworker/pkg/proxy"
	gltls "globaleaks/tlsworker/pkg/security/tls"
	"globaleaks/tlsworker/pkg/telemetry"
	"globaleaks/tlsworker/pkg/telemetry/health"
	"globaleaks/tlsworker/pkg/telemetry/logging"
	"globaleaks/tlsworker/pkg/worker"
)

// ErrSupervisorGone is returned by Run when the worker stopped because
// its parent process died.
var ErrSupervisorGone = lifecycle.ErrSupervisorGone

const adminShutdownTimeout = 5 * time.Second

// Deps are the collaborators of a Server.
type Deps struct {
	// Telemetry is required.
	Telemetry *telemetry.Telemetry

	// Channel supplies the worker configuration. Nil reads the descriptor
	// named by cfg.Worker.ConfigFD.
	Channel *worker.Channel

	// Signals feeds the lifecycle controller. Nil means no signals.
	Signals <-chan os.Signal

	// Validator checks the certificate chain. Nil uses the system roots.
	Validator *gltls.ChainValidator

	// SettingsPath, when set, is watched for log level changes.
	SettingsPath string

	// ParentPID is the supervisor pid captured when the process started.
	// Zero reads it in Start.
	ParentPID int
}

// Server wires the worker together.
type Server struct {
	cfg  *config.Config
	deps Deps
	tel  *telemetry.Telemetry
	log  *logging.Logger

	lc *lifecycle.Controller

	worker    *worker.Config
	tlsCtx    *gltls.ServerContext
	listeners *listener.Set
	proxy     *proxy.Proxy

	admin     *http.Server
	adminAddr net.Addr
	monitor   *gltls.Monitor
	watcher   *config.Watcher

	bgCtx    context.Context
	bgCancel context.CancelFunc
	serving  sync.WaitGroup

	mu      sync.Mutex
	started bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a server. Nothing is read or opened until Start.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Channel == nil {
		deps.Channel = worker.NewChannel(cfg.Worker.ConfigFD)
	}
	if deps.Validator == nil {
		deps.Validator = gltls.NewChainValidator()
	}

	log := deps.Telemetry.Logger()
	bgCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		deps:     deps,
		tel:      deps.Telemetry,
		log:      log,
		lc:       lifecycle.New(log.With("component", "lifecycle")),
		bgCtx:    bgCtx,
		bgCancel: cancel,
	}
}

// Lifecycle returns the lifecycle controller.
func (s *Server) Lifecycle() *lifecycle.Controller {
	return s.lc
}

// Proxy returns the relay, or nil before Start.
func (s *Server) Proxy() *proxy.Proxy {
	return s.proxy
}

// Listeners returns the listener set, or nil before Start.
func (s *Server) Listeners() *listener.Set {
	return s.listeners
}

// AdminAddr returns the bound admin address, or nil when disabled.
func (s *Server) AdminAddr() net.Addr {
	return s.adminAddr
}

// Start performs the startup sequence and begins accepting connections.
// Every failure is a *worker.StartupError; on failure everything opened
// so far is released.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		s.log.Error(fmt.Sprintf("setup failed with %v", err))
		s.Shutdown(context.Background())
		return err
	}
	return nil
}

func (s *Server) start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return worker.NewStartupError(worker.StageConfig, err)
	}

	s.log.Info(fmt.Sprintf("listening for cfg on %d", s.deps.Channel.FD()))
	wcfg, err := s.deps.Channel.Read()
	if err != nil {
		return worker.NewStartupError(worker.StageConfig, err)
	}
	s.worker = wcfg
	s.log.Info("read config", "proxy", wcfg.BackendAddr(), "fds", wcfg.FDs())
	if s.log.Level() <= slog.LevelDebug {
		redacted := wcfg.Redacted()
		s.log.Debug("worker config", "dump", dumper.Sdump(redacted))
	}

	if err := wcfg.CheckLoopback(); err != nil {
		return worker.NewStartupError(worker.StageLoopback, err)
	}

	res := s.deps.Validator.Validate(wcfg, false)
	if !res.OK {
		return worker.NewStartupError(worker.StageValidation, res.Err)
	}

	tlsCtx, err := gltls.NewServerContext(res, gltls.MaterialFromConfig(wcfg))
	if err != nil {
		return worker.NewStartupError(worker.StageTLSContext, err)
	}
	s.tlsCtx = tlsCtx

	s.proxy, err = proxy.New(proxy.Config{
		BackendAddr:      wcfg.BackendAddr(),
		HandshakeTimeout: s.cfg.Proxy.HandshakeTimeout,
		DialTimeout:      s.cfg.Proxy.DialTimeout,
		IdleTimeout:      s.cfg.Proxy.IdleTimeout,
		HalfCloseTimeout: s.cfg.Proxy.HalfCloseTimeout,
		BufferSize:       s.cfg.Proxy.BufferSize,
	},
		proxy.WithLogger(s.log.With("component", "proxy")),
		proxy.WithMetrics(s.tel.Metrics()),
		proxy.WithTracer(s.tel.Tracer()),
		proxy.WithAdmitter(s.lc),
	)
	if err != nil {
		return worker.NewStartupError(worker.StageLoopback, err)
	}

	set, err := listener.Open(wcfg.FDs(), tlsCtx.TLSConfig(), s.log.Slog())
	if err != nil {
		return worker.NewStartupError(worker.StageListener, err)
	}
	s.listeners = set
	s.tel.Metrics().SetListenersOpen(set.Open())

	s.wireLifecycle()
	s.registerHealthChecks()

	if err := s.startAdmin(); err != nil {
		return worker.NewStartupError(worker.StageAdmin, err)
	}

	s.startMonitor()
	s.startParentWatch()
	s.startSettingsWatch()

	for _, ln := range set.Listeners() {
		s.serving.Add(1)
		go func(ln *listener.Listener) {
			defer s.serving.Done()
			if err := s.proxy.Serve(s.bgCtx, ln); err != nil {
				s.log.Error("accept loop ended", "listener", ln.String(), "error", err)
			}
		}(ln)
	}

	go s.lc.Run(s.bgCtx, s.deps.Signals)
	return nil
}

// Run blocks until the worker stops. A drain closes the listeners and
// waits for open connections, bounded by the drain timeout. Losing the
// supervisor closes everything at once and returns ErrSupervisorGone.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.lc.Drain("context canceled")
	case <-s.lc.Draining():
	}

	s.closeListeners()

	if s.lc.State() != lifecycle.StateStopped {
		s.drain()
		s.lc.Stop(nil)
	}

	err := s.Shutdown(context.Background())
	if cause := s.lc.Cause(); cause != nil {
		return cause
	}
	return err
}

func (s *Server) drain() {
	if s.proxy == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if d := s.cfg.Proxy.DrainTimeout; d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	// The supervisor dying mid-drain cuts the drain short.
	go func() {
		select {
		case <-s.lc.Stopped():
			cancel()
		case <-ctx.Done():
		}
	}()

	s.log.Info("waiting for connections to finish", "active", s.proxy.Active(), "timeout", s.cfg.Proxy.DrainTimeout)
	if err := s.proxy.Wait(ctx); err != nil {
		s.log.Warn("drain cut short, closing connections", "active", s.proxy.Active(), "error", err)
	}
}

// Shutdown releases everything. It is safe to call more than once and
// from any goroutine; later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) error {
	var errs []error

	s.lc.Stop(nil)
	s.closeListeners()

	if s.proxy != nil {
		s.proxy.CloseAll()
		waitCtx, cancel := context.WithTimeout(ctx, adminShutdownTimeout)
		if err := s.proxy.Wait(waitCtx); err != nil {
			errs = append(errs, fmt.Errorf("connections still open: %w", err))
		}
		cancel()
	}
	s.serving.Wait()

	if s.admin != nil {
		adminCtx, cancel := context.WithTimeout(ctx, adminShutdownTimeout)
		if err := s.admin.Shutdown(adminCtx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
		cancel()
	}
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	s.bgCancel()

	if err := s.tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	s.log.Info("worker stopped")
	return errors.Join(errs...)
}

func (s *Server) closeListeners() {
	if s.listeners == nil {
		return
	}
	if err := s.listeners.Close(); err != nil {
		s.log.Warn("closing listeners", "error", err)
	}
	s.tel.Metrics().SetListenersOpen(0)
}

func (s *Server) wireLifecycle() {
	metrics := s.tel.Metrics()
	metrics.SetLifecycleState(lifecycle.StateRunning.String())
	s.lc.OnTransition(func(st lifecycle.State) {
		metrics.SetLifecycleState(st.String())
	})
	s.lc.OnDiagnostic(func() []any {
		return []any{
			"active_connections", s.proxy.Active(),
			"listeners", s.listeners.Open(),
			"backend", s.worker.BackendAddr(),
		}
	})
}

func (s *Server) registerHealthChecks() {
	checker := s.tel.Health()
	checker.RegisterCheck(health.CheckLifecycle, health.LifecycleCheck(func() string {
		return s.lc.State().String()
	}))
	checker.RegisterCheck(health.CheckListeners, health.ListenersCheck(s.listeners.Open))
	checker.RegisterCheck(health.CheckBackend, health.BackendCheck(s.worker.BackendAddr()))
	checker.RegisterCheck(health.CheckCertificate, health.CertificateCheck(s.tlsCtx.Leaf(), time.Now))
}

func (s *Server) startAdmin() error {
	if !s.cfg.AdminEnabled() {
		return nil
	}
	h := s.tel.Handler()
	if h == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Admin.ListenAddress)
	if err != nil {
		return fmt.Errorf("admin listener: %w", err)
	}
	s.adminAddr = ln.Addr()

	if s.cfg.Admin.AccessLog {
		h = handlers.CombinedLoggingHandler(s.log.Writer("admin request"), h)
	}
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
		handlers.PrintRecoveryStack(false),
	)(h)

	s.admin = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("admin server failed", "error", err)
		}
	}()
	s.log.Info("admin endpoints listening", "addr", s.adminAddr.String())
	return nil
}

func (s *Server) startMonitor() {
	if !s.cfg.CertMonitor.MonitorEnabled() {
		return
	}
	m := gltls.NewMonitor(s.tlsCtx.Leaf(), gltls.MonitorConfig{
		Schedule: s.cfg.CertMonitor.Schedule,
		WarnDays: s.cfg.CertMonitor.WarnDays,
	}, s.tel.Metrics(), s.log.Slog())
	if err := m.Start(); err != nil {
		s.log.Warn("certificate monitor not started", "error", err)
		return
	}
	s.monitor = m
}

func (s *Server) startParentWatch() {
	if err := lifecycle.SetParentDeathSignal(lifecycle.ParentDeathSignal); err != nil {
		s.log.Warn("parent death signal unavailable", "error", err)
	}
	w := lifecycle.NewParentWatcher(s.deps.ParentPID, s.cfg.Worker.ParentPollInterval, func() {
		s.lc.Stop(lifecycle.ErrSupervisorGone)
	}, s.log)
	// The death signal only covers a parent alive at the prctl call.
	if w.Check() {
		return
	}
	go w.Watch(s.bgCtx)
}

func (s *Server) startSettingsWatch() {
	if s.deps.SettingsPath == "" {
		return
	}
	w, err := config.NewWatcher(s.deps.SettingsPath, s.log.Slog())
	if err != nil {
		s.log.Warn("settings watcher not started", "error", err)
		return
	}
	w.OnReload(func(c *config.Config) {
		if err := s.log.SetLevel(c.Telemetry.Logging.Level); err != nil {
			s.log.Warn("ignoring log level from reloaded settings", "error", err)
			return
		}
		s.log.Info("log level changed", "level", c.Telemetry.Logging.Level)
	})
	s.watcher = w
	go func() {
		if err := w.Watch(s.bgCtx); err != nil {
			s.log.Warn("settings watcher stopped", "error", err)
		}
	}()
}

// recoveryLogger routes admin handler panics into the process log.
type recoveryLogger struct {
	log *logging.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.log.Error("admin handler panic", "panic", fmt.Sprint(v...))
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}
