package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// claimAttempts bounds how often ClaimNext retries after losing the
// conditional update race to another claimer.
const claimAttempts = 3

// ClaimNext atomically moves the head of the queue from queued to
// claimed and returns it. It returns nil when the queue is empty. The
// claim is a conditional update, so two concurrent claimers can never
// own the same item; the loser retries with the next candidate.
func (s *Store) ClaimNext(ctx context.Context) (*Item, error) {
	ctx = ensureContext(ctx)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM queue_items WHERE status = ? ORDER BY sort_order, id LIMIT 1`,
			StatusQueued,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claim candidate: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(ctx,
			`UPDATE queue_items SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`,
			StatusClaimed, now, id, StatusQueued,
		)
		if err != nil {
			return nil, fmt.Errorf("claim item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			return s.GetByID(ctx, id)
		}
		// Lost the race; the candidate was claimed or removed meanwhile.
	}
	return nil, nil
}

// Claim moves a specific queued item to claimed. Manual runs use this
// to target one item instead of the queue head.
func (s *Store) Claim(ctx context.Context, id int64) (*Item, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`,
		StatusClaimed, now, id, StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("claim item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("claim: item %d is not queued", id)
	}
	return s.GetByID(ctx, id)
}

// Release returns a claimed or ready item to the queue. Releasing an
// item that is already queued or gone is a no-op.
func (s *Store) Release(ctx context.Context, id int64) error {
	placeholders, args := statusArgs([]Status{StatusClaimed, StatusReady})
	args = append([]any{StatusQueued, id}, args...)
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE queue_items SET status = ?, claimed_at = NULL WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	); err != nil {
		return fmt.Errorf("release item: %w", err)
	}
	return nil
}

// MarkReady records that an item's download completed and the upload is
// about to start.
func (s *Store) MarkReady(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET status = ? WHERE id = ? AND status = ?`,
		StatusReady, id, StatusClaimed,
	)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark ready: item %d is not claimed", id)
	}
	return nil
}

// FinalizeSuccess commits a published item: the row leaves the active
// queue and keeps the remote video id for history.
func (s *Store) FinalizeSuccess(ctx context.Context, id int64, remoteID string) error {
	placeholders, args := statusArgs([]Status{StatusClaimed, StatusReady})
	now := time.Now().UTC().Format(time.RFC3339Nano)
	args = append([]any{StatusPublished, now, nullableString(remoteID), id}, args...)
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET status = ?, published_at = ?, remote_id = ?, claimed_at = NULL
         WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("finalize item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finalize: item %d is not in flight", id)
	}
	return nil
}

// ReclaimStale returns items stuck in claimed or ready since before the
// cutoff to the queue. It reports how many items were recovered.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	placeholders, args := statusArgs([]Status{StatusClaimed, StatusReady})
	args = append([]any{StatusQueued, cutoff.UTC().Format(time.RFC3339Nano)}, args...)
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET status = ?, claimed_at = NULL
         WHERE claimed_at IS NOT NULL AND claimed_at < ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	return res.RowsAffected()
}
