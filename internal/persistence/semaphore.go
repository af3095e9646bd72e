package persistence

import (
	"context"
	"fmt"
)

// Acquire takes one slot of the named per-world counting semaphore if fewer
// than limit are held. The check and the increment are a single UPDATE, so
// concurrent callers can never push the count past limit. It returns whether
// a slot was taken and the count afterwards.
func (db *DB) Acquire(ctx context.Context, world, name string, limit int) (bool, int, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO semaphores (world_id, name, count) VALUES (?, ?, 0) ON CONFLICT(world_id, name) DO NOTHING",
		world, name); err != nil {
		return false, 0, fmt.Errorf("ensure semaphore %s/%s: %w", world, name, err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE semaphores SET count = count + 1 WHERE world_id = ? AND name = ? AND count < ?",
		world, name, limit)
	if err != nil {
		return false, 0, fmt.Errorf("acquire %s/%s: %w", world, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT count FROM semaphores WHERE world_id = ? AND name = ?", world, name); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return n == 1, count, nil
}

// Release gives back one slot. The count never drops below zero.
func (db *DB) Release(ctx context.Context, world, name string) (int, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE semaphores SET count = MAX(count - 1, 0) WHERE world_id = ? AND name = ?",
		world, name); err != nil {
		return 0, fmt.Errorf("release %s/%s: %w", world, name, err)
	}
	var count int
	err = tx.GetContext(ctx, &count, "SELECT COALESCE((SELECT count FROM semaphores WHERE world_id = ? AND name = ?), 0)", world, name)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit()
}
