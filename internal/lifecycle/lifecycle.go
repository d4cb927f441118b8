package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cloud-sandbox/notebook-agent/internal/auth"
	"github.com/cloud-sandbox/notebook-agent/internal/config"
	"github.com/cloud-sandbox/notebook-agent/internal/health"
	"github.com/cloud-sandbox/notebook-agent/internal/logging"
)

// Phase is the lifecycle's position in its one-way state machine.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseStarting
	PhaseHealthy
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseStarting:
		return "starting"
	case PhaseHealthy:
		return "healthy"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// ResolveFunc produces the agent configuration.
type ResolveFunc func() (*config.Config, error)

// Observer is told how startup ended. class is empty on success.
type Observer interface {
	ObserveStartup(class string, d time.Duration)
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithObserver reports startup outcomes to o.
func WithObserver(o Observer) Option {
	return func(l *Lifecycle) { l.observer = o }
}

// WithClock overrides the clock used for token expiry and durations.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// Lifecycle drives configuration, agent start and keep-alive. It is the
// only writer of the health state.
type Lifecycle struct {
	state    *health.State
	resolve  ResolveFunc
	factory  Factory
	log      logging.Logger
	observer Observer
	now      func() time.Time

	phase atomic.Int32
}

// New returns a lifecycle in PhaseUninitialized.
func New(state *health.State, resolve ResolveFunc, factory Factory, log logging.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		state:   state,
		resolve: resolve,
		factory: factory,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logging.New("lifecycle")
	}
	return l
}

// Phase reports the current phase.
func (l *Lifecycle) Phase() Phase {
	return Phase(l.phase.Load())
}

// Run executes the startup sequence and then blocks in the agent's
// keep-alive. Every failure is returned as a *FatalError. A nil return means
// keep-alive ended cleanly.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.phase.Store(int32(PhaseStarting))
	l.state.Heartbeat()
	began := l.now()

	agent, err := l.start(ctx)
	if err != nil {
		return l.fail(err, began)
	}

	l.state.MarkInitialized()
	l.phase.Store(int32(PhaseHealthy))
	l.observe("", began)

	eff := agent.Config()
	l.log.WithFields(logrus.Fields{
		"kernel_id":          eff.KernelID,
		"kernel_type":        eff.KernelType,
		"notebook_id":        eff.NotebookID,
		"session_id":         eff.SessionID,
		"sync_url":           eff.SyncURL,
		"heartbeat_interval": eff.HeartbeatInterval.String(),
	}).Info("agent started")

	if err := agent.KeepAlive(ctx); err != nil {
		// Keep-alive failures are fatal but startup already succeeded, so
		// they are not counted as startup outcomes.
		l.state.RecordError(err.Error())
		l.phase.Store(int32(PhaseFailed))
		l.log.WithError(err).Error("agent keep-alive failed")
		return &FatalError{Class: ClassStartup, Err: errors.WithMessage(err, "keep-alive")}
	}
	l.log.Info("agent keep-alive returned")
	return nil
}

func (l *Lifecycle) start(ctx context.Context) (Agent, error) {
	cfg, err := l.resolve()
	if err != nil {
		return nil, err
	}
	l.log.WithFields(cfg.LogFields()).Info("configuration resolved")
	l.inspectToken(cfg.AuthToken)

	agent, err := l.factory(cfg)
	if err != nil {
		return nil, errors.WithMessage(err, "construct agent")
	}
	if err := agent.Start(ctx); err != nil {
		return nil, errors.WithMessage(err, "start agent")
	}
	return agent, nil
}

func (l *Lifecycle) fail(err error, began time.Time) error {
	class := Classify(err)
	l.state.RecordError(err.Error())
	l.phase.Store(int32(PhaseFailed))
	l.observe(string(class), began)

	entry := l.log.WithError(err).WithField("class", string(class))
	if hint := Hint(err); hint != "" {
		entry = entry.WithField("hint", hint)
	}
	entry.Error("agent startup failed")
	return &FatalError{Class: class, Err: err}
}

func (l *Lifecycle) inspectToken(token string) {
	claims, err := auth.Inspect(token)
	if err != nil {
		// Opaque tokens are valid; only the sync server can judge them.
		l.log.WithError(err).Debug("auth token is not an inspectable JWT")
		return
	}
	if claims.Expired(l.now()) {
		l.log.WithField("expired_at", claims.ExpiresAt.Time.UTC().Format(time.RFC3339)).
			Warn("auth token has expired; the sync server will likely reject it")
	}
	if claims.NotebookID != "" {
		l.log.WithField("token_notebook_id", claims.NotebookID).Debug("auth token inspected")
	}
}

func (l *Lifecycle) observe(class string, began time.Time) {
	if l.observer == nil {
		return
	}
	l.observer.ObserveStartup(class, l.now().Sub(began))
}
