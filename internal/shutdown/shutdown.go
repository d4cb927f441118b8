// Package shutdown turns termination signals into a clean exit.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloud-sandbox/notebook-agent/internal/logging"
)

// DefaultSignals are the signals the agent treats as a request to exit.
var DefaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// Notify subscribes to sigs, or DefaultSignals when none are given. The
// returned stop func unsubscribes.
func Notify(sigs ...os.Signal) (<-chan os.Signal, func()) {
	if len(sigs) == 0 {
		sigs = DefaultSignals
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	return ch, func() { signal.Stop(ch) }
}

// Coordinator waits for the first termination signal.
type Coordinator struct {
	signals <-chan os.Signal
	log     logging.Logger
}

// NewCoordinator watches signals, typically the channel from Notify.
func NewCoordinator(signals <-chan os.Signal, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.New("shutdown")
	}
	return &Coordinator{signals: signals, log: log}
}

// Wait blocks until a signal arrives or ctx is done. The process should
// exit with status 0 once Wait returns a signal; nothing is drained.
func (c *Coordinator) Wait(ctx context.Context) (os.Signal, error) {
	select {
	case sig := <-c.signals:
		c.log.WithField("signal", sig.String()).Info("received termination signal, shutting down")
		return sig, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
