// Package daemon wires the queue, scheduler, runner, and local HTTP API
// into a single long-running process and enforces single-instance
// execution through a lock file.
package daemon
