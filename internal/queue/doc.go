// Package queue persists the publish queue and its settings in SQLite.
// All state transitions are conditional updates so that concurrent
// claimers and crash recovery never observe a half-applied change.
package queue
