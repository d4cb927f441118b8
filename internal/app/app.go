// Package app wires the bootstrap together and turns its outcome into a
// process exit code.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/cloud-sandbox/notebook-agent/internal/config"
	"github.com/cloud-sandbox/notebook-agent/internal/health"
	"github.com/cloud-sandbox/notebook-agent/internal/kernelagent"
	"github.com/cloud-sandbox/notebook-agent/internal/lifecycle"
	"github.com/cloud-sandbox/notebook-agent/internal/logging"
	"github.com/cloud-sandbox/notebook-agent/internal/metrics"
	"github.com/cloud-sandbox/notebook-agent/internal/shutdown"
	"github.com/cloud-sandbox/notebook-agent/internal/status"
)

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitFatal = 1
)

const metricsNamespace = "notebook_agent"

// Deps is everything Run needs from the outside world.
type Deps struct {
	State   *health.State
	Lookup  config.LookupFunc
	Signals <-chan os.Signal
	// Factory defaults to the kernelagent sync client.
	Factory lifecycle.Factory
	Logger  logging.Logger
	// HealthAddr defaults to :8000.
	HealthAddr string
	// Metrics defaults to a fresh registry under the notebook_agent
	// namespace.
	Metrics *metrics.Metrics
}

// Run starts the health server and the agent lifecycle and blocks until a
// termination signal (ExitOK) or a fatal lifecycle error (ExitFatal).
func Run(ctx context.Context, deps Deps) int {
	if deps.State == nil {
		deps.State = health.NewState()
	}
	if deps.Lookup == nil {
		deps.Lookup = config.FromEnv()
	}
	if deps.Logger == nil {
		deps.Logger = logging.New("app")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(metricsNamespace, nil)
	}
	if deps.Factory == nil {
		deps.Factory = kernelagent.NewFactory(kernelagent.Options{
			Logger: logging.New("kernelagent"),
		})
	}
	log := deps.Logger

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps.Metrics.TrackState(deps.State)
	healthServer := health.NewServer(deps.State, health.Options{
		Addr:       deps.HealthAddr,
		Logger:     logging.New("health"),
		Middleware: deps.Metrics.HTTPMiddleware,
	})
	if err := healthServer.Start(); err != nil {
		// Without the health listener the process cannot be monitored, so
		// running the agent would only look alive.
		deps.State.RecordError(err.Error())
		log.WithError(err).Error("health listener unavailable, exiting")
		return ExitFatal
	}
	defer stopServer(log, "health", healthServer.Stop)

	platform, err := config.ResolvePlatform(deps.Lookup)
	if err != nil {
		log.WithError(errors.WithMessage(err, "platform configuration")).
			Warn("running without metrics listener and status publisher")
		platform = &config.Platform{}
	}

	if platform.MetricsPort > 0 {
		srv := startMetrics(log, deps.Metrics, platform.MetricsPort)
		defer stopServer(log, "metrics", srv.Shutdown)
	}

	var graceful atomic.Bool
	if platform.RedisAddr != "" {
		// Resolve has no side effects, so the notebook id read here is the
		// one the lifecycle will resolve. Failures are left to the lifecycle.
		if cfg, err := config.Resolve(deps.Lookup); err == nil {
			done := make(chan struct{})
			go func() {
				defer close(done)
				publishStatus(runCtx, log, deps.State, platform, cfg.NotebookID, graceful.Load)
			}()
			defer waitStatus(log, cancel, done)
		}
	}

	resolve := func() (*config.Config, error) {
		return config.Resolve(deps.Lookup)
	}
	lc := lifecycle.New(deps.State, resolve, deps.Factory, logging.New("lifecycle"),
		lifecycle.WithObserver(deps.Metrics))

	result := make(chan error, 1)
	go func() { result <- lc.Run(runCtx) }()

	signals := make(chan os.Signal, 1)
	go func() {
		sig, err := shutdown.NewCoordinator(deps.Signals, logging.New("shutdown")).Wait(runCtx)
		if err == nil {
			signals <- sig
		}
	}()

	for {
		select {
		case <-signals:
			graceful.Store(true)
			return ExitOK
		case <-ctx.Done():
			log.Info("context cancelled, shutting down")
			graceful.Store(true)
			return ExitOK
		case err := <-result:
			if err != nil {
				var fatal *lifecycle.FatalError
				if errors.As(err, &fatal) {
					log.WithField("class", string(fatal.Class)).Error("exiting after fatal failure")
				} else {
					log.WithError(err).Error("exiting after unexpected failure")
				}
				return ExitFatal
			}
			// KeepAlive returned cleanly; keep serving health until told to stop.
			result = nil
		}
	}
}

func startMetrics(log logging.Logger, m *metrics.Metrics, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("metrics listening")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}

// publishStatus mirrors state to Redis until ctx is done. When graceful
// reports true at that point the key is removed; after a fatal exit it is
// left to expire so the last errors stay visible.
func publishStatus(ctx context.Context, log logging.Logger, state *health.State, p *config.Platform, notebookID string, graceful func() bool) {
	pub, err := status.NewRedisPublisher(status.RedisConfig{
		Addr:     p.RedisAddr,
		Password: p.RedisPassword,
		DB:       p.RedisDB,
	}, 3*p.StatusInterval, logging.New("status"))
	if err != nil {
		log.WithError(err).Warn("running without status publisher")
		return
	}
	defer pub.Close()

	log.WithField("key", status.Key(notebookID)).Info("publishing status to redis")
	pub.Run(ctx, state, notebookID, p.StatusInterval)

	if !graceful() {
		return
	}
	delCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pub.Delete(delCtx, notebookID); err != nil {
		log.WithError(err).Warn("failed to clear status")
	}
}

// waitStatus stops the publisher and gives it a moment to clean up.
func waitStatus(log logging.Logger, cancel context.CancelFunc, done <-chan struct{}) {
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn("status publisher did not stop in time")
	}
}

// stopServer closes a listener without waiting on in-flight requests for
// long; the process is about to exit.
func stopServer(log logging.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.WithError(err).WithField("server", name).Debug("server shutdown")
	}
}
