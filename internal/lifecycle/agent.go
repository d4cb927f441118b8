package lifecycle

import (
	"context"
	"time"

	"github.com/cloud-sandbox/notebook-agent/internal/config"
)

// EffectiveConfig is what the agent actually runs with after applying its
// own defaults. It is logged once start succeeds.
type EffectiveConfig struct {
	KernelID          string
	KernelType        string
	NotebookID        string
	SessionID         string
	SyncURL           string
	HeartbeatInterval time.Duration
}

// Agent is the long-running notebook runtime driven by the lifecycle.
type Agent interface {
	// Start returns once the agent is ready to serve, or with the reason it
	// could not get there.
	Start(ctx context.Context) error
	// KeepAlive blocks for the agent's operational lifetime.
	KeepAlive(ctx context.Context) error
	Config() EffectiveConfig
}

// Factory builds an Agent from resolved configuration.
type Factory func(cfg *config.Config) (Agent, error)
