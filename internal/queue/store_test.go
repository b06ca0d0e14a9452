package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dailycast/internal/queue"
	"dailycast/internal/services"
	"dailycast/internal/testsupport"
)

func TestAddAssignsSortOrderFromID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.Enqueue(t, store, "https://youtu.be/aaaaaaaaaaa", "First")
	second := testsupport.Enqueue(t, store, "https://youtu.be/bbbbbbbbbbb", "Second")

	if first.ID == 0 || second.ID == 0 {
		t.Fatal("expected item IDs to be assigned")
	}
	if first.SortOrder != first.ID || second.SortOrder != second.ID {
		t.Fatalf("expected sort order backfilled from id, got %d/%d and %d/%d",
			first.SortOrder, first.ID, second.SortOrder, second.ID)
	}

	items, err := store.ListQueued(ctx, 0)
	if err != nil {
		t.Fatalf("ListQueued failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != first.ID || items[1].ID != second.ID {
		t.Fatalf("unexpected queue order: %#v", items)
	}
}

func TestAddRejectsEmptySourceURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Add(context.Background(), queue.NewItem{SourceURL: "   "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetByIDHidesPublishedRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "https://youtu.be/ccccccccccc", "Soon Gone")

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.MarkReady(ctx, claimed.ID); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if err := store.FinalizeSuccess(ctx, claimed.ID, "remote123"); err != nil {
		t.Fatalf("FinalizeSuccess failed: %v", err)
	}

	if _, err := store.GetByID(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for published row, got %v", err)
	}

	history, err := store.ListPublished(ctx, 10)
	if err != nil {
		t.Fatalf("ListPublished failed: %v", err)
	}
	if len(history) != 1 || history[0].RemoteID != "remote123" || history[0].PublishedAt == nil {
		t.Fatalf("unexpected history: %#v", history)
	}
}

func TestEditsApplyOnlyToQueuedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "https://youtu.be/ddddddddddd", "Original Title")

	if err := store.UpdateTitle(ctx, item.ID, "New Title"); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}
	if err := store.UpdateDescription(ctx, item.ID, "Some description"); err != nil {
		t.Fatalf("UpdateDescription failed: %v", err)
	}
	if err := store.UpdateThumbnail(ctx, item.ID, queue.ThumbCustom, "/tmp/thumb.jpg"); err != nil {
		t.Fatalf("UpdateThumbnail failed: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Title != "New Title" || updated.Description != "Some description" {
		t.Fatalf("unexpected metadata: %#v", updated)
	}
	if updated.ThumbMode != queue.ThumbCustom || updated.ThumbRef != "/tmp/thumb.jpg" {
		t.Fatalf("unexpected thumbnail: %#v", updated)
	}

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.UpdateTitle(ctx, item.ID, "Too Late"); !errors.Is(err, services.ErrNotEditable) {
		t.Fatalf("expected not editable after claim, got %v", err)
	}
	if err := store.Remove(ctx, item.ID); !errors.Is(err, services.ErrNotEditable) {
		t.Fatalf("expected not editable remove after claim, got %v", err)
	}
}

func TestUpdateThumbnailValidatesMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "https://youtu.be/eeeeeeeeeee", "Thumbs")

	if err := store.UpdateThumbnail(ctx, item.ID, "banner", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
	if err := store.UpdateThumbnail(ctx, item.ID, queue.ThumbCustom, " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty custom ref, got %v", err)
	}
}

func TestSwapOrderExchangesPositions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.Enqueue(t, store, "https://youtu.be/fffffffffff", "First")
	second := testsupport.Enqueue(t, store, "https://youtu.be/ggggggggggg", "Second")

	if err := store.SwapOrder(ctx, first.ID, second.ID); err != nil {
		t.Fatalf("SwapOrder failed: %v", err)
	}

	items, err := store.ListQueued(ctx, 0)
	if err != nil {
		t.Fatalf("ListQueued failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("expected swapped order, got %#v", items)
	}

	// A second swap restores the original order.
	if err := store.SwapOrder(ctx, first.ID, second.ID); err != nil {
		t.Fatalf("second SwapOrder failed: %v", err)
	}
	items, err = store.ListQueued(ctx, 0)
	if err != nil {
		t.Fatalf("ListQueued failed: %v", err)
	}
	if items[0].ID != first.ID {
		t.Fatalf("expected original order restored, got %#v", items)
	}
}

func TestSwapOrderRejectsMissingAndClaimed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.Enqueue(t, store, "https://youtu.be/hhhhhhhhhhh", "First")
	second := testsupport.Enqueue(t, store, "https://youtu.be/iiiiiiiiiii", "Second")

	if err := store.SwapOrder(ctx, first.ID, 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
	if err := store.SwapOrder(ctx, first.ID, first.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for self swap, got %v", err)
	}

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.SwapOrder(ctx, first.ID, second.ID); !errors.Is(err, services.ErrNotEditable) {
		t.Fatalf("expected not editable for claimed item, got %v", err)
	}
}

func TestRemoveDeletesQueuedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.Enqueue(t, store, "https://youtu.be/jjjjjjjjjjj", "Removable")

	if err := store.Remove(ctx, item.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.GetByID(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
	if err := store.Remove(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for second remove, got %v", err)
	}
}

func TestListQueuedHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		item := testsupport.Enqueue(t, store, fmt.Sprintf("https://youtu.be/lllllllll%02d", i), fmt.Sprintf("Item %d", i))
		ids = append(ids, item.ID)
	}

	items, err := store.ListQueued(ctx, 2)
	if err != nil {
		t.Fatalf("ListQueued failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != ids[0] || items[1].ID != ids[1] {
		t.Fatalf("expected first two items, got %#v", items)
	}

	queuedIDs, err := store.ListQueuedIDs(ctx, 0)
	if err != nil {
		t.Fatalf("ListQueuedIDs failed: %v", err)
	}
	if len(queuedIDs) != 3 || queuedIDs[0] != ids[0] || queuedIDs[2] != ids[2] {
		t.Fatalf("expected all ids in queue order, got %v", queuedIDs)
	}

	headIDs, err := store.ListQueuedIDs(ctx, 1)
	if err != nil {
		t.Fatalf("ListQueuedIDs failed: %v", err)
	}
	if len(headIDs) != 1 || headIDs[0] != ids[0] {
		t.Fatalf("expected queue head id, got %v", headIDs)
	}
}

func TestListQueuedSkipsClaimedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		testsupport.Enqueue(t, store, fmt.Sprintf("https://youtu.be/kkkkkkkkk%02d", i), fmt.Sprintf("Item %d", i))
	}

	claimed, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	queued, err := store.ListQueued(ctx, 0)
	if err != nil {
		t.Fatalf("ListQueued failed: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued items, got %d", len(queued))
	}
	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active items, got %d", len(active))
	}
}
