package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names read by the resolver.
const (
	EnvNotebookID        = "NOTEBOOK_ID"
	EnvAuthToken         = "AUTH_TOKEN"
	EnvSyncURL           = "SYNC_URL"
	EnvKernelID          = "KERNEL_ID"
	EnvSessionID         = "SESSION_ID"
	EnvHeartbeatInterval = "HEARTBEAT_INTERVAL"
	EnvLogLevel          = "LOG_LEVEL"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvPackages          = "PYODIDE_PACKAGES"
)

// LookupFunc has the shape of os.LookupEnv so tests can supply a map.
type LookupFunc func(key string) (string, bool)

// FromEnv reads from the process environment.
func FromEnv() LookupFunc {
	return os.LookupEnv
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// Config is the agent configuration derived once at startup.
// Optional fields keep their zero value when the variable is absent.
type Config struct {
	NotebookID string
	AuthToken  string

	SyncURL           string
	KernelID          string
	SessionID         string
	HeartbeatInterval time.Duration
	LogLevel          string
	Packages          []string

	// OpenAIKeySet reports whether OPENAI_API_KEY is set. The key itself
	// is consumed by the agent runtime and never stored here.
	OpenAIKeySet bool
}

// Resolve builds a Config from the variables visible through lookup.
func Resolve(lookup LookupFunc) (*Config, error) {
	notebookID, err := required(lookup, EnvNotebookID)
	if err != nil {
		return nil, err
	}
	token, err := required(lookup, EnvAuthToken)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NotebookID: notebookID,
		AuthToken:  token,
		SyncURL:    optional(lookup, EnvSyncURL),
		KernelID:   optional(lookup, EnvKernelID),
		SessionID:  optional(lookup, EnvSessionID),
		LogLevel:   optional(lookup, EnvLogLevel),
		Packages:   splitPackages(optional(lookup, EnvPackages)),

		OpenAIKeySet: AIKeyPresent(lookup),
	}

	if raw := optional(lookup, EnvHeartbeatInterval); raw != "" {
		d, err := parseInterval(raw)
		if err != nil {
			return nil, &InvalidVariableError{Name: EnvHeartbeatInterval, Value: raw, Err: err}
		}
		cfg.HeartbeatInterval = d
	}

	return cfg, nil
}

// AIKeyPresent reports whether OPENAI_API_KEY is set. The key itself is
// consumed by the agent and never stored here.
func AIKeyPresent(lookup LookupFunc) bool {
	return optional(lookup, EnvOpenAIAPIKey) != ""
}

// LogFields returns the resolved values that are safe to log.
func (c *Config) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"notebook_id":        c.NotebookID,
		"sync_url":           c.SyncURL,
		"kernel_id":          c.KernelID,
		"session_id":         c.SessionID,
		"heartbeat_interval": c.HeartbeatInterval.String(),
		"log_level":          c.LogLevel,
		"packages":           strings.Join(c.Packages, ","),
		"openai_key_set":     c.OpenAIKeySet,
	}
}

func required(lookup LookupFunc, name string) (string, error) {
	v := optional(lookup, name)
	if v == "" {
		return "", &MissingVariableError{Name: name}
	}
	return v, nil
}

func optional(lookup LookupFunc, name string) string {
	v, ok := lookup(name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// splitPackages splits a comma-separated list, trimming entries and
// dropping empty ones. Returns nil when nothing remains.
func splitPackages(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// parseInterval accepts a Go duration ("15s") or bare milliseconds ("15000").
func parseInterval(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms <= 0 {
			return 0, errNotPositive
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errNotPositive
	}
	return d, nil
}
