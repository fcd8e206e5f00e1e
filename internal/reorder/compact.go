package reorder

import (
	"context"
	"fmt"

	"github.com/zulandar/switchyard/internal/position"
	"gorm.io/gorm"
)

// CompactStats reports what a compaction pass renumbered.
type CompactStats struct {
	Containers int // containers inspected
	Renumbered int // items whose position changed
}

// compact renumbers the members of one container densely under its lock.
func (e *Engine) compact(ctx context.Context, k kind, containerID string) (int, error) {
	unlock := e.locks.Lock(k.key(containerID))
	defer unlock()
	var n int
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = position.Compact(tx, k.scope, containerID)
		return err
	})
	return n, err
}

// CompactBoard closes every position gap on one board: its lists and the
// cards of each list.
func (e *Engine) CompactBoard(ctx context.Context, boardID string) (CompactStats, error) {
	var stats CompactStats
	n, err := e.compact(ctx, listKind, boardID)
	if err != nil {
		return stats, fmt.Errorf("reorder: compact board %s: %w", boardID, err)
	}
	stats.Containers++
	stats.Renumbered += n

	var listIDs []string
	if err := e.db.WithContext(ctx).Table("lists").Where("board_id = ?", boardID).Pluck("id", &listIDs).Error; err != nil {
		return stats, fmt.Errorf("reorder: compact board %s: %w", boardID, err)
	}
	for _, id := range listIDs {
		n, err := e.compact(ctx, cardKind, id)
		if err != nil {
			return stats, fmt.Errorf("reorder: compact list %s: %w", id, err)
		}
		stats.Containers++
		stats.Renumbered += n
	}
	return stats, nil
}

// CompactAll closes position gaps in every container. Each container is
// compacted in its own transaction, so a failure leaves earlier containers
// compacted.
func (e *Engine) CompactAll(ctx context.Context) (CompactStats, error) {
	var stats CompactStats
	for _, k := range []kind{listKind, cardKind} {
		parents, err := position.Parents(e.db.WithContext(ctx), k.scope)
		if err != nil {
			return stats, fmt.Errorf("reorder: compact: %w", err)
		}
		for _, id := range parents {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			n, err := e.compact(ctx, k, id)
			if err != nil {
				return stats, fmt.Errorf("reorder: compact %s %s: %w", k.container, id, err)
			}
			stats.Containers++
			stats.Renumbered += n
		}
	}
	return stats, nil
}
