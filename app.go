package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
	"gitlab.com/tinyland/lab/research-pulse/pkg/config"
	"gitlab.com/tinyland/lab/research-pulse/pkg/credstore"
	"gitlab.com/tinyland/lab/research-pulse/pkg/loop"
	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
	"gitlab.com/tinyland/lab/research-pulse/pkg/research"
	"gitlab.com/tinyland/lab/research-pulse/pkg/screens"
	"gitlab.com/tinyland/lab/research-pulse/pkg/state"
	"gitlab.com/tinyland/lab/research-pulse/pkg/task"
	"gitlab.com/tinyland/lab/research-pulse/pkg/toast"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
	classifier *apperr.Classifier
	svc        research.Service
	creds      state.CredentialStore
	srv        *http.Server
}

// newApp loads configuration and builds the logger, metrics and service.
// interactive keeps logs off the terminal.
func newApp(ctx context.Context, opts *options, interactive bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger(cfg, opts.verbose, interactive)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		log:        log,
		metrics:    metrics.New(),
		classifier: apperr.NewClassifier(),
	}
	if a.svc, a.creds, err = newService(cfg, log); err != nil {
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(ctx, cfg.Metrics.Addr); err != nil {
			return nil, err
		}
	}
	log.Debug("starting",
		zap.String("version", version),
		zap.String("api", cfg.API.BaseURL),
		zap.Bool("mock", cfg.Mock.Enabled))
	return a, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFromFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.useMocks {
		cfg.Mock.Enabled = true
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.verbose {
		cfg.General.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds a JSON logger writing to the configured log file, plus
// stderr for headless commands. --verbose switches to the console encoder.
func newLogger(cfg *config.Config, verbose, interactive bool) (*zap.Logger, error) {
	var outputs []string
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		outputs = append(outputs, cfg.General.LogFile)
	}
	if !interactive {
		outputs = append(outputs, "stderr")
	}
	if len(outputs) == 0 {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.General.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = outputs
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// newService returns the data service and the credential store matching it.
// Mock runs keep the session in memory so they never touch the real one.
func newService(cfg *config.Config, log *zap.Logger) (research.Service, state.CredentialStore, error) {
	if cfg.Mock.Enabled {
		svc := research.NewMock(
			research.WithLatency(cfg.Mock.Latency.Duration),
			research.WithWatchlist(cfg.Mock.Watchlist...),
		)
		return svc, credstore.NewMemory(research.MockToken), nil
	}

	client, err := research.NewClient(cfg.API.BaseURL,
		research.WithTimeout(cfg.API.Timeout.Duration),
		research.WithUserAgent(cfg.API.UserAgent+"/"+version),
		research.WithLogger(log.Named("api")),
	)
	if err != nil {
		return nil, nil, err
	}
	return client, credstore.NewFile(cfg.Auth.CredentialsPath), nil
}

// serveMetrics starts the Prometheus endpoint. It stops when ctx ends or
// close is called.
func (a *app) serveMetrics(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		a.stopMetrics()
	}()
	a.log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

func (a *app) stopMetrics() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.srv.Shutdown(ctx)
}

func (a *app) close() {
	a.stopMetrics()
	_ = a.log.Sync()
}

// newRoot builds the state root on d.
func (a *app) newRoot(d loop.Dispatcher) *state.Root {
	toasts := toast.New(toast.Config{
		Dispatcher: d,
		Delay:      a.cfg.Toast.Duration.Duration,
		Logger:     a.log,
		Metrics:    a.metrics,
	})
	return state.New(state.Config{
		Dispatcher:                       d,
		Credentials:                      a.creds,
		Identity:                         a.svc,
		Toasts:                           toasts,
		Logger:                           a.log,
		Metrics:                          a.metrics,
		Classifier:                       a.classifier,
		KeepCredentialOnTransientFailure: a.cfg.Auth.KeepCredentialOnTransientFailure,
		RestoreTimeout:                   a.cfg.Auth.RestoreTimeout.Duration,
	})
}

func (a *app) deps(d loop.Dispatcher, root *state.Root) screens.Deps {
	return screens.Deps{
		Dispatcher:      d,
		Root:            root,
		Service:         a.svc,
		Logger:          a.log,
		Metrics:         a.metrics,
		Classifier:      a.classifier,
		SearchCacheSize: a.cfg.Cache.SearchEntries,
		Retry: task.RetryPolicy{
			Attempts:   a.cfg.API.RetryAttempts,
			Delay:      a.cfg.API.RetryDelay.Duration,
			MaxWait:    a.cfg.API.RetryMaxWait.Duration,
			Classifier: a.classifier,
		},
	}
}
