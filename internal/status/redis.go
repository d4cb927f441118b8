// Package status mirrors the health record into Redis so the platform can
// see runtime status without polling each pod.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloud-sandbox/notebook-agent/internal/health"
	"github.com/cloud-sandbox/notebook-agent/internal/logging"
)

const (
	statusKeyPrefix = "notebook-agent:status:"
)

// Record is the JSON document stored per notebook.
type Record struct {
	NotebookID    string    `json:"notebookId"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	Uptime        float64   `json:"uptime"`
	Errors        []string  `json:"errors"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisPublisher writes Records to Redis with an expiry so a dead agent's
// status disappears on its own.
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
	log    logging.Logger
}

// NewRedisPublisher connects and pings. ttl is the expiry applied to every
// write.
func NewRedisPublisher(config RedisConfig, ttl time.Duration, log logging.Logger) (*RedisPublisher, error) {
	if config.PoolSize == 0 {
		config.PoolSize = 2
	}
	if log == nil {
		log = logging.New("status")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{
		client: client,
		ttl:    ttl,
		log:    log,
	}, nil
}

// Key returns the Redis key holding a notebook's status.
func Key(notebookID string) string {
	return statusKeyPrefix + notebookID
}

// NewRecord captures a snapshot of state for notebookID.
func NewRecord(notebookID string, snap health.Snapshot, now time.Time) Record {
	status := health.StatusInitializing
	if snap.Initialized {
		status = health.StatusHealthy
	}
	return Record{
		NotebookID:    notebookID,
		Status:        status,
		LastHeartbeat: snap.LastHeartbeat.UTC(),
		Uptime:        now.Sub(snap.StartedAt).Seconds(),
		Errors:        snap.RecentErrors,
		UpdatedAt:     now.UTC(),
	}
}

// Publish stores rec under its notebook's key.
func (p *RedisPublisher) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := p.client.Set(ctx, Key(rec.NotebookID), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return nil
}

// Run publishes state every interval until ctx is done. Publish failures
// are logged and retried on the next tick.
func (p *RedisPublisher) Run(ctx context.Context, state *health.State, notebookID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	publish := func() {
		rec := NewRecord(notebookID, state.Snapshot(), time.Now())
		if err := p.Publish(ctx, rec); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Warn("failed to publish status")
		}
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publish()
		}
	}
}

// Delete removes a notebook's status. Called on graceful shutdown so a
// stopped agent does not linger until its TTL runs out.
func (p *RedisPublisher) Delete(ctx context.Context, notebookID string) error {
	if err := p.client.Del(ctx, Key(notebookID)).Err(); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
