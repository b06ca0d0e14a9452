package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	// StatusQueued means the item is waiting its turn and is fully editable.
	StatusQueued Status = "queued"
	// StatusClaimed means a run owns the item and is downloading it.
	StatusClaimed Status = "claimed"
	// StatusReady means the download finished and the upload is in flight.
	StatusReady Status = "ready"
	// StatusPublished means the item went out; the row is kept for history.
	StatusPublished Status = "published"
)

var allStatuses = []Status{
	StatusQueued,
	StatusClaimed,
	StatusReady,
	StatusPublished,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// activeStatuses are the statuses visible to queue operations; published
// rows are history only.
var activeStatuses = []Status{StatusQueued, StatusClaimed, StatusReady}

// Thumbnail modes for an item. Source keeps whatever the origin video
// carries; custom points at an operator-supplied image.
const (
	ThumbSource = "source"
	ThumbCustom = "custom"
)

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID              int64      `json:"id"`
	SourceURL       string     `json:"source_url"`
	VideoID         string     `json:"video_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ThumbMode       string     `json:"thumb_mode"`
	ThumbRef        string     `json:"thumb_ref,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	Status          Status     `json:"status"`
	SortOrder       int64      `json:"sort_order"`
	RemoteID        string     `json:"remote_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// NewItem carries the fields captured when a link is enqueued.
type NewItem struct {
	SourceURL       string
	VideoID         string
	Title           string
	Description     string
	DurationSeconds int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive reports whether the item still participates in the queue.
func (i Item) IsActive() bool {
	return i.Status != StatusPublished
}

// IsEditable reports whether metadata and ordering changes are allowed.
func (i Item) IsEditable() bool {
	return i.Status == StatusQueued
}
