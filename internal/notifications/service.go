package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dailycast/internal/config"
)

const userAgent = "Dailycast/0.1.0"

// Service defines the notification surface exposed to the runner and
// daemon. All notifications are best effort: callers log failures but
// never abort a run over them.
type Service interface {
	NotifyDailyTrigger(ctx context.Context, at string) error
	NotifyRunStarted(ctx context.Context, title string) error
	NotifyAlreadyRan(ctx context.Context, day string) error
	NotifyQueueEmpty(ctx context.Context, day string) error
	NotifyPublished(ctx context.Context, title, remoteID string) error
	NotifyQualityChoiceNeeded(ctx context.Context, itemID int64, title string, available []int) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		callbackBase: "http://" + cfg.Paths.APIBind,
		client:       &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	actions  []string
}

type ntfyService struct {
	endpoint     string
	callbackBase string
	client       *http.Client
}

// NotifyDailyTrigger reports that the daily trigger went off, before
// any outcome is known. It fires even when the day turns out to be
// already consumed.
func (n *ntfyService) NotifyDailyTrigger(ctx context.Context, at string) error {
	data := payload{
		title:    "Dailycast - Daily Run",
		message:  fmt.Sprintf("Daily run started at %s.", at),
		tags:     []string{"dailycast", "run", "triggered"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "(untitled)"
	}
	data := payload{
		title:   "Dailycast - Run Started",
		message: fmt.Sprintf("Publishing today's video: %s", title),
		tags:    []string{"dailycast", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAlreadyRan(ctx context.Context, day string) error {
	data := payload{
		title:    "Dailycast - Already Ran",
		message:  fmt.Sprintf("Today's run (%s) already happened. Nothing to do.", day),
		tags:     []string{"dailycast", "run", "skipped"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueEmpty(ctx context.Context, day string) error {
	data := payload{
		title:   "Dailycast - Queue Empty",
		message: fmt.Sprintf("Nothing to publish on %s. Add links before the next run.", day),
		tags:    []string{"dailycast", "queue", "empty"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, title, remoteID string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Published: %s", title)
	if remoteID != "" {
		message = fmt.Sprintf("%s\nhttps://youtu.be/%s", message, remoteID)
	}
	data := payload{
		title:    "Dailycast - Published",
		message:  message,
		tags:     []string{"dailycast", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

// NotifyQualityChoiceNeeded asks the operator to pick a download height.
// Each offered height becomes an ntfy action button that posts the
// choice back to the daemon API; the item stays parked until then.
func (n *ntfyService) NotifyQualityChoiceNeeded(ctx context.Context, itemID int64, title string, available []int) error {
	title = strings.TrimSpace(title)
	callback := fmt.Sprintf("%s/api/items/%d/quality", n.callbackBase, itemID)

	var actions []string
	for i, height := range available {
		// The simple Actions header format caps out at three buttons.
		if i == 3 {
			break
		}
		actions = append(actions, fmt.Sprintf("http, %dp, %s, method=POST, body=%d", height, callback, height))
	}

	heightsText := make([]string, len(available))
	for i, height := range available {
		heightsText[i] = fmt.Sprintf("%dp", height)
	}

	data := payload{
		title:    "Dailycast - Quality Choice Needed",
		message:  fmt.Sprintf("%s has no preferred quality.\nAvailable: %s", title, strings.Join(heightsText, ", ")),
		tags:     []string{"dailycast", "quality", "review"},
		priority: "high",
		actions:  actions,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Dailycast - Error",
		message:  builder.String(),
		tags:     []string{"dailycast", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Dailycast - Test",
		message:  "Notification system test",
		tags:     []string{"dailycast", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if len(data.actions) > 0 {
		req.Header.Set("Actions", strings.Join(data.actions, "; "))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDailyTrigger(context.Context, string) error                      { return nil }
func (noopService) NotifyRunStarted(context.Context, string) error                        { return nil }
func (noopService) NotifyAlreadyRan(context.Context, string) error                        { return nil }
func (noopService) NotifyQueueEmpty(context.Context, string) error                        { return nil }
func (noopService) NotifyPublished(context.Context, string, string) error                 { return nil }
func (noopService) NotifyQualityChoiceNeeded(context.Context, int64, string, []int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                      { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }
