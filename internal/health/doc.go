// Package health owns the process health record and the /health endpoint.
//
// State has one writer (the lifecycle) and any number of readers. Readers
// take a Snapshot, which is a copy and needs no locking.
//
// Server answers GET /health with 200 once the agent has started and 503
// before that. Every other path or method gets a plain-text 404.
package health
