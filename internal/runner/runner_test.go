package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"dailycast/internal/config"
	"dailycast/internal/logging"
	"dailycast/internal/queue"
	"dailycast/internal/runner"
	"dailycast/internal/services"
	"dailycast/internal/testsupport"
	"dailycast/internal/youtube"
)

type stubFetcher struct {
	mu       sync.Mutex
	heights  []int
	probeErr error
	fetchErr error
	panics   bool
	fetched  []int
	cleaned  []int64
}

func (f *stubFetcher) Probe(ctx context.Context, sourceURL string) ([]int, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.heights, nil
}

func (f *stubFetcher) Fetch(ctx context.Context, itemID int64, sourceURL string, height int, progress func(string)) (string, error) {
	if f.panics {
		panic("fetch blew up")
	}
	if progress != nil {
		progress("[download] 100%")
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, height)
	f.mu.Unlock()
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return fmt.Sprintf("/staging/item-%d/video.mp4", itemID), nil
}

func (f *stubFetcher) Cleanup(itemID int64) error {
	f.mu.Lock()
	f.cleaned = append(f.cleaned, itemID)
	f.mu.Unlock()
	return nil
}

type stubPublisher struct {
	uploadErr error
	remoteID  string
	requests  []youtube.UploadRequest
	thumbs    []string
}

func (p *stubPublisher) Upload(ctx context.Context, req youtube.UploadRequest) (string, error) {
	p.requests = append(p.requests, req)
	if p.uploadErr != nil {
		return "", p.uploadErr
	}
	return p.remoteID, nil
}

func (p *stubPublisher) SetThumbnail(ctx context.Context, videoID, imagePath string) error {
	p.thumbs = append(p.thumbs, imagePath)
	return nil
}

type stubNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *stubNotifier) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *stubNotifier) has(prefix string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, event := range n.events {
		if len(event) >= len(prefix) && event[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func (n *stubNotifier) count(prefix string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, event := range n.events {
		if len(event) >= len(prefix) && event[:len(prefix)] == prefix {
			total++
		}
	}
	return total
}

func (n *stubNotifier) NotifyDailyTrigger(_ context.Context, at string) error {
	n.record("trigger:" + at)
	return nil
}

func (n *stubNotifier) NotifyRunStarted(_ context.Context, title string) error {
	n.record("started:" + title)
	return nil
}

func (n *stubNotifier) NotifyAlreadyRan(_ context.Context, day string) error {
	n.record("already_ran:" + day)
	return nil
}

func (n *stubNotifier) NotifyQueueEmpty(_ context.Context, day string) error {
	n.record("queue_empty:" + day)
	return nil
}

func (n *stubNotifier) NotifyPublished(_ context.Context, title, remoteID string) error {
	n.record(fmt.Sprintf("published:%s:%s", title, remoteID))
	return nil
}

func (n *stubNotifier) NotifyQualityChoiceNeeded(_ context.Context, itemID int64, title string, available []int) error {
	n.record(fmt.Sprintf("choice:%d:%v", itemID, available))
	return nil
}

func (n *stubNotifier) NotifyError(_ context.Context, err error, context string) error {
	n.record("error:" + context)
	return nil
}

func (n *stubNotifier) TestNotification(context.Context) error {
	n.record("test")
	return nil
}

type harness struct {
	cfg       *config.Config
	store     *queue.Store
	fetcher   *stubFetcher
	publisher *stubPublisher
	notifier  *stubNotifier
	runner    *runner.Runner
}

func newHarness(t *testing.T, fetcher *stubFetcher, publisher *stubPublisher) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &stubNotifier{}
	r, err := runner.New(cfg, store, fetcher, publisher, notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	return &harness{cfg: cfg, store: store, fetcher: fetcher, publisher: publisher, notifier: notifier, runner: r}
}

func TestRunDailyWithEmptyQueueConsumesDay(t *testing.T) {
	h := newHarness(t, &stubFetcher{}, &stubPublisher{})

	ctx := context.Background()
	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	day, err := h.store.LastPublishDay(ctx)
	if err != nil {
		t.Fatalf("LastPublishDay failed: %v", err)
	}
	if day != h.runner.Today() {
		t.Fatalf("expected day consumed, got %q", day)
	}
	if !h.notifier.has("queue_empty:") {
		t.Fatalf("expected queue empty notification, got %v", h.notifier.events)
	}
}

func TestRunDailyPublishesHeadOfQueue(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{2160, 1080, 720}}
	publisher := &stubPublisher{remoteID: "remote-xyz"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/AAAAAAAAAAA", "Daily Pick")

	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	if _, err := h.store.GetByID(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected item gone from active queue, got %v", err)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != 2160 {
		t.Fatalf("expected fetch at 2160, got %v", fetcher.fetched)
	}
	if len(publisher.requests) != 1 || publisher.requests[0].Title != "Daily Pick" {
		t.Fatalf("unexpected upload requests %#v", publisher.requests)
	}
	if !h.notifier.has("published:Daily Pick:remote-xyz") {
		t.Fatalf("expected publish notification, got %v", h.notifier.events)
	}
	if len(fetcher.cleaned) != 1 || fetcher.cleaned[0] != item.ID {
		t.Fatalf("expected staging cleanup, got %v", fetcher.cleaned)
	}

	day, err := h.store.LastPublishDay(ctx)
	if err != nil {
		t.Fatalf("LastPublishDay failed: %v", err)
	}
	if day != h.runner.Today() {
		t.Fatalf("expected day consumed, got %q", day)
	}
}

func TestRunDailyIsIdempotentWithinADay(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}}
	publisher := &stubPublisher{remoteID: "remote-1"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	testsupport.Enqueue(t, h.store, "https://youtu.be/AAAAAAAAAAA", "First")
	testsupport.Enqueue(t, h.store, "https://youtu.be/BBBBBBBBBBB", "Second")

	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("first RunDaily failed: %v", err)
	}
	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("second RunDaily failed: %v", err)
	}

	if len(publisher.requests) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(publisher.requests))
	}
	if !h.notifier.has("already_ran:") {
		t.Fatalf("expected already-ran notice, got %v", h.notifier.events)
	}

	remaining, err := h.store.ListQueued(ctx, 0)
	if err != nil {
		t.Fatalf("ListQueued failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Title != "Second" {
		t.Fatalf("expected second item untouched, got %#v", remaining)
	}
}

func TestRunDailyReportsEveryTrigger(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}}
	publisher := &stubPublisher{remoteID: "remote-9"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	testsupport.Enqueue(t, h.store, "https://youtu.be/LLLLLLLLLLL", "Reported")

	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("first RunDaily failed: %v", err)
	}
	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("second RunDaily failed: %v", err)
	}

	// Both firings report, even though the second one hits the gate.
	if got := h.notifier.count("trigger:"); got != 2 {
		t.Fatalf("expected 2 trigger reports, got %d (%v)", got, h.notifier.events)
	}
	if !h.notifier.has("already_ran:") {
		t.Fatalf("expected already-ran notice, got %v", h.notifier.events)
	}
}

func TestQualityEscalationParksItemAndConsumesDay(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{720}}
	publisher := &stubPublisher{remoteID: "remote-2"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/CCCCCCCCCCC", "Odd Quality")

	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	restored, err := h.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if restored.Status != queue.StatusQueued {
		t.Fatalf("expected item back in queue, got %s", restored.Status)
	}
	if !h.notifier.has(fmt.Sprintf("choice:%d:[720]", item.ID)) {
		t.Fatalf("expected choice notification, got %v", h.notifier.events)
	}
	if len(fetcher.fetched) != 0 {
		t.Fatalf("expected no fetch during escalation, got %v", fetcher.fetched)
	}

	day, err := h.store.LastPublishDay(ctx)
	if err != nil {
		t.Fatalf("LastPublishDay failed: %v", err)
	}
	if day != h.runner.Today() {
		t.Fatalf("expected escalation to consume the day, got %q", day)
	}

	pending := h.runner.PendingChoices()
	if len(pending) != 1 || pending[0].ItemID != item.ID {
		t.Fatalf("expected pending choice for item, got %#v", pending)
	}
}

func TestSubmittedChoiceDrivesNextRun(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{720}}
	publisher := &stubPublisher{remoteID: "remote-3"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/DDDDDDDDDDD", "Answered")

	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}
	if err := h.runner.SubmitChoice(item.ID, 720); err != nil {
		t.Fatalf("SubmitChoice failed: %v", err)
	}

	// The manual run skips the consumed day gate and picks up the choice.
	if err := h.runner.RunOnce(ctx, 0); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != 720 {
		t.Fatalf("expected fetch at chosen height, got %v", fetcher.fetched)
	}
	if _, err := h.store.GetByID(ctx, item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected item published, got %v", err)
	}
	if len(h.runner.PendingChoices()) != 0 {
		t.Fatal("expected pending choice consumed")
	}
}

func TestSubmitChoiceValidatesAgainstOfferedHeights(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{720, 480}}
	h := newHarness(t, fetcher, &stubPublisher{})

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/EEEEEEEEEEE", "Strict")
	if err := h.runner.RunDaily(ctx); err != nil {
		t.Fatalf("RunDaily failed: %v", err)
	}

	if err := h.runner.SubmitChoice(item.ID, 1080); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unoffered height, got %v", err)
	}
	if err := h.runner.SubmitChoice(item.ID+99, 720); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown item, got %v", err)
	}
	if err := h.runner.SubmitChoice(item.ID, 480); err != nil {
		t.Fatalf("SubmitChoice failed: %v", err)
	}
}

func TestFetchFailureReleasesClaimAndLeavesDayOpen(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}, fetchErr: errors.New("network sneezed")}
	h := newHarness(t, fetcher, &stubPublisher{})

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/FFFFFFFFFFF", "Flaky")

	if err := h.runner.RunDaily(ctx); err == nil {
		t.Fatal("expected error from failed fetch")
	}

	restored, err := h.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if restored.Status != queue.StatusQueued {
		t.Fatalf("expected item requeued, got %s", restored.Status)
	}
	if !h.notifier.has("error:") {
		t.Fatalf("expected error notification, got %v", h.notifier.events)
	}

	day, err := h.store.LastPublishDay(ctx)
	if err != nil {
		t.Fatalf("LastPublishDay failed: %v", err)
	}
	if day != "" {
		t.Fatalf("expected day left open after failure, got %q", day)
	}
	if len(fetcher.cleaned) != 1 {
		t.Fatalf("expected staging cleanup on failure, got %v", fetcher.cleaned)
	}
}

func TestUploadFailureReleasesReadyItem(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}}
	publisher := &stubPublisher{uploadErr: errors.New("quota exhausted")}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/GGGGGGGGGGG", "Unlucky")

	if err := h.runner.RunDaily(ctx); err == nil {
		t.Fatal("expected error from failed upload")
	}

	restored, err := h.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if restored.Status != queue.StatusQueued {
		t.Fatalf("expected item requeued after upload failure, got %s", restored.Status)
	}
}

func TestPanicInPipelineReleasesClaim(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}, panics: true}
	h := newHarness(t, fetcher, &stubPublisher{})

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/HHHHHHHHHHH", "Explosive")

	if err := h.runner.RunDaily(ctx); err == nil {
		t.Fatal("expected error surfaced from panic")
	}

	restored, err := h.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if restored.Status != queue.StatusQueued {
		t.Fatalf("expected item requeued after panic, got %s", restored.Status)
	}
}

func TestRunOnceSkipsDayGate(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}}
	publisher := &stubPublisher{remoteID: "remote-4"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	first := testsupport.Enqueue(t, h.store, "https://youtu.be/IIIIIIIIIII", "First")
	second := testsupport.Enqueue(t, h.store, "https://youtu.be/JJJJJJJJJJJ", "Second")

	// Target the second item explicitly.
	if err := h.runner.RunOnce(ctx, second.ID); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if _, err := h.store.GetByID(ctx, second.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected targeted item published, got %v", err)
	}
	if _, err := h.store.GetByID(ctx, first.ID); err != nil {
		t.Fatalf("expected first item untouched: %v", err)
	}

	day, err := h.store.LastPublishDay(ctx)
	if err != nil {
		t.Fatalf("LastPublishDay failed: %v", err)
	}
	if day != "" {
		t.Fatalf("expected manual run to leave the day open, got %q", day)
	}
}

func TestCustomThumbnailIsApplied(t *testing.T) {
	fetcher := &stubFetcher{heights: []int{1080}}
	publisher := &stubPublisher{remoteID: "remote-5"}
	h := newHarness(t, fetcher, publisher)

	ctx := context.Background()
	item := testsupport.Enqueue(t, h.store, "https://youtu.be/KKKKKKKKKKK", "Thumbed")
	if err := h.store.UpdateThumbnail(ctx, item.ID, queue.ThumbCustom, "/art/custom.jpg"); err != nil {
		t.Fatalf("UpdateThumbnail failed: %v", err)
	}

	if err := h.runner.RunOnce(ctx, item.ID); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(publisher.thumbs) != 1 || publisher.thumbs[0] != "/art/custom.jpg" {
		t.Fatalf("expected custom thumbnail set, got %v", publisher.thumbs)
	}
}
