package services_test

import (
	"context"
	"testing"

	"dailycast/internal/services"
)

func TestItemIDRoundTrip(t *testing.T) {
	ctx := services.WithItemID(context.Background(), 42)
	id, ok := services.ItemIDFromContext(ctx)
	if !ok || id != 42 {
		t.Fatalf("expected 42, got %d (ok=%v)", id, ok)
	}

	if _, ok := services.ItemIDFromContext(context.Background()); ok {
		t.Fatal("expected absent item id")
	}
}

func TestStageAndRequestID(t *testing.T) {
	ctx := services.WithStage(context.Background(), "fetch")
	ctx = services.WithRequestID(ctx, "req-1")

	stage, ok := services.StageFromContext(ctx)
	if !ok || stage != "fetch" {
		t.Fatalf("unexpected stage %q (ok=%v)", stage, ok)
	}
	rid, ok := services.RequestIDFromContext(ctx)
	if !ok || rid != "req-1" {
		t.Fatalf("unexpected request id %q (ok=%v)", rid, ok)
	}

	// Empty values do not annotate.
	if _, ok := services.StageFromContext(services.WithStage(context.Background(), "")); ok {
		t.Fatal("expected empty stage to be ignored")
	}
}
