package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, source_url, video_id, title, description, thumb_mode, thumb_ref, duration_seconds, status, sort_order, remote_id, created_at, claimed_at, published_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		sourceURL    string
		videoID      sql.NullString
		title        sql.NullString
		description  sql.NullString
		thumbMode    sql.NullString
		thumbRef     sql.NullString
		duration     sql.NullInt64
		statusStr    string
		sortOrder    int64
		remoteID     sql.NullString
		createdRaw   sql.NullString
		claimedRaw   sql.NullString
		publishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&videoID,
		&title,
		&description,
		&thumbMode,
		&thumbRef,
		&duration,
		&statusStr,
		&sortOrder,
		&remoteID,
		&createdRaw,
		&claimedRaw,
		&publishedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourceURL:       sourceURL,
		VideoID:         videoID.String,
		Title:           title.String,
		Description:     description.String,
		ThumbMode:       thumbMode.String,
		ThumbRef:        thumbRef.String,
		DurationSeconds: int(duration.Int64),
		Status:          Status(statusStr),
		SortOrder:       sortOrder,
		RemoteID:        remoteID.String,
	}
	if item.ThumbMode == "" {
		item.ThumbMode = ThumbSource
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if claimedRaw.Valid {
		if claimed, err := parseTimeString(claimedRaw.String); err == nil {
			item.ClaimedAt = &claimed
		}
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			item.PublishedAt = &published
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) (string, []any) {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return makePlaceholders(len(statuses)), args
}
