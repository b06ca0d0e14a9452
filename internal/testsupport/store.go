package testsupport

import (
	"context"
	"testing"

	"dailycast/internal/config"
	"dailycast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue adds a queue item for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, sourceURL, title string) *queue.Item {
	t.Helper()

	item, err := store.Add(context.Background(), queue.NewItem{
		SourceURL:       sourceURL,
		Title:           title,
		DurationSeconds: 600,
	})
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return item
}
