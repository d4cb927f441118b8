// Package lifecycle runs the agent startup sequence.
//
// The sequence is resolve, construct, start, then keep-alive. Any failure
// before keep-alive is recorded in the health state and returned as a
// *FatalError; there are no retries, the process supervisor restarts us.
package lifecycle
