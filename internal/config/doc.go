// Package config resolves the agent configuration from environment variables.
//
// Resolve reads NOTEBOOK_ID and AUTH_TOKEN (required) plus the optional
// SYNC_URL, KERNEL_ID, SESSION_ID, HEARTBEAT_INTERVAL, LOG_LEVEL and
// PYODIDE_PACKAGES. Absent optional variables leave the field at its zero
// value; defaulting is the agent's job and shows up in its effective config.
//
// Failures are typed: *MissingVariableError and *InvalidVariableError. Use
// IsConfigurationError and VariableName to classify them.
//
// ResolvePlatform reads the bootstrap's own settings (metrics port, Redis
// status publishing), kept apart from the agent configuration.
package config
