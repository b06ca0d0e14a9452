package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dailycast/internal/services"
)

// Add enqueues a new item at the end of the queue. The sort order is
// backfilled from the row id inside the same transaction so new items
// always sort after existing ones.
func (s *Store) Add(ctx context.Context, item NewItem) (*Item, error) {
	sourceURL := strings.TrimSpace(item.SourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: source url is empty", services.ErrValidation)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO queue_items (
                source_url, video_id, title, description, thumb_mode,
                duration_seconds, status, sort_order, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			sourceURL,
			nullableString(item.VideoID),
			nullableString(strings.TrimSpace(item.Title)),
			nullableString(item.Description),
			ThumbSource,
			item.DurationSeconds,
			StatusQueued,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_items SET sort_order = id WHERE id = ?`, id,
		); err != nil {
			return fmt.Errorf("backfill sort order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an active queue item by identifier. Published history
// rows are not visible here.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	placeholders, args := statusArgs(activeStatuses)
	args = append([]any{id}, args...)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListActive returns every item still in the queue ordered by position.
func (s *Store) ListActive(ctx context.Context) ([]*Item, error) {
	return s.listByStatuses(ctx, activeStatuses, 0)
}

// ListQueued returns the items awaiting a run ordered by position. A
// limit of zero or less returns them all.
func (s *Store) ListQueued(ctx context.Context, limit int) ([]*Item, error) {
	return s.listByStatuses(ctx, []Status{StatusQueued}, limit)
}

// ListQueuedIDs returns just the identifiers of items awaiting a run,
// in queue order. A limit of zero or less returns them all.
func (s *Store) ListQueuedIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `SELECT id FROM queue_items WHERE status = ? ORDER BY sort_order, id`
	args := []any{StatusQueued}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queued ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan queued id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) listByStatuses(ctx context.Context, statuses []Status, limit int) ([]*Item, error) {
	placeholders, args := statusArgs(statuses)
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status IN (` + placeholders + `) ORDER BY sort_order, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListPublished returns the most recent publish history, newest first.
func (s *Store) ListPublished(ctx context.Context, limit int) ([]*Item, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY published_at DESC, id DESC LIMIT ?`,
		StatusPublished, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateTitle changes an item's title. Only queued items are editable.
func (s *Store) UpdateTitle(ctx context.Context, id int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is empty", services.ErrValidation)
	}
	return s.updateEditable(ctx, id,
		`UPDATE queue_items SET title = ? WHERE id = ? AND status = ?`,
		title, id, StatusQueued,
	)
}

// UpdateDescription changes an item's description. Only queued items are
// editable.
func (s *Store) UpdateDescription(ctx context.Context, id int64, description string) error {
	return s.updateEditable(ctx, id,
		`UPDATE queue_items SET description = ? WHERE id = ? AND status = ?`,
		nullableString(description), id, StatusQueued,
	)
}

// UpdateThumbnail changes an item's thumbnail mode and reference. Only
// queued items are editable.
func (s *Store) UpdateThumbnail(ctx context.Context, id int64, mode, ref string) error {
	switch mode {
	case ThumbSource:
		ref = ""
	case ThumbCustom:
		if strings.TrimSpace(ref) == "" {
			return fmt.Errorf("%w: custom thumbnail needs a reference", services.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown thumbnail mode %q", services.ErrValidation, mode)
	}
	return s.updateEditable(ctx, id,
		`UPDATE queue_items SET thumb_mode = ?, thumb_ref = ? WHERE id = ? AND status = ?`,
		mode, nullableString(ref), id, StatusQueued,
	)
}

// updateEditable runs a queued-only update and distinguishes a missing
// item from one that is no longer editable.
func (s *Store) updateEditable(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("item %d: %w", id, services.ErrNotEditable)
}

// SwapOrder exchanges the positions of two queued items in a single
// transaction.
func (s *Store) SwapOrder(ctx context.Context, a, b int64) error {
	if a == b {
		return fmt.Errorf("%w: cannot swap an item with itself", services.ErrValidation)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		orderA, err := queuedSortOrder(ctx, tx, a)
		if err != nil {
			return err
		}
		orderB, err := queuedSortOrder(ctx, tx, b)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_items SET sort_order = ? WHERE id = ?`, orderB, a,
		); err != nil {
			return fmt.Errorf("swap order: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_items SET sort_order = ? WHERE id = ?`, orderA, b,
		); err != nil {
			return fmt.Errorf("swap order: %w", err)
		}
		return nil
	})
}

func queuedSortOrder(ctx context.Context, tx *sql.Tx, id int64) (int64, error) {
	var (
		status    string
		sortOrder int64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT status, sort_order FROM queue_items WHERE id = ?`, id,
	).Scan(&status, &sortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("item %d: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read sort order: %w", err)
	}
	if Status(status) != StatusQueued {
		return 0, fmt.Errorf("item %d: %w", id, services.ErrNotEditable)
	}
	return sortOrder, nil
}

// Remove deletes a queued item. Items that are claimed, ready, or
// published stay put.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM queue_items WHERE id = ? AND status = ?`, id, StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("item %d: %w", id, services.ErrNotEditable)
}
