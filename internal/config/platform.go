package config

import (
	"strconv"
	"time"
)

// Platform variables. None of them are agent configuration; they control
// the bootstrap's own surfaces.
const (
	EnvMetricsPort    = "METRICS_PORT"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvRedisDB        = "REDIS_DB"
	EnvStatusInterval = "STATUS_INTERVAL"

	DefaultStatusInterval = 15 * time.Second
)

// Platform holds optional settings for metrics exposition and status
// publishing.
type Platform struct {
	// MetricsPort is 0 when metrics exposition is disabled.
	MetricsPort int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StatusInterval time.Duration
}

// ResolvePlatform reads the platform variables.
func ResolvePlatform(lookup LookupFunc) (*Platform, error) {
	p := &Platform{
		RedisAddr:      optional(lookup, EnvRedisAddr),
		RedisPassword:  optional(lookup, EnvRedisPassword),
		StatusInterval: DefaultStatusInterval,
	}

	if raw := optional(lookup, EnvMetricsPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return nil, &InvalidVariableError{Name: EnvMetricsPort, Value: raw, Err: errPort}
		}
		p.MetricsPort = port
	}

	if raw := optional(lookup, EnvRedisDB); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			return nil, &InvalidVariableError{Name: EnvRedisDB, Value: raw, Err: errNotNonNegative}
		}
		p.RedisDB = db
	}

	if raw := optional(lookup, EnvStatusInterval); raw != "" {
		d, err := parseInterval(raw)
		if err != nil {
			return nil, &InvalidVariableError{Name: EnvStatusInterval, Value: raw, Err: err}
		}
		p.StatusInterval = d
	}

	return p, nil
}
