// Package app is the application service: it owns the task registry and runs one task at a time per call,
// giving each run its own correlation ID, RunContext and metrics. HTTP handlers and the CLI sit on top of it.
package app
