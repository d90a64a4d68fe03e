package data

import (
	"context"
	"fmt"
)

// =============================================================================
// INVENTORY REPOSITORY
// =============================================================================

type InventoryRepository struct {
	b Backend
}

func NewInventoryRepository(b Backend) *InventoryRepository {
	return &InventoryRepository{b: b}
}

var newestFirst = []Order{{Column: colDate, Descending: true}, {Column: colID, Descending: true}}

// =============================================================================
// SNAPSHOT PARENTS
// =============================================================================

// ListSnapshots returns every snapshot parent, newest date first.
func (r *InventoryRepository) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	return r.selectSnapshots(ctx, Query{Table: TableSnapshots, Order: newestFirst})
}

func (r *InventoryRepository) CountSnapshots(ctx context.Context) (int, error) {
	return r.b.Count(ctx, TableSnapshots)
}

// LatestSnapshot returns the newest parent or ErrNotFound when there is none.
func (r *InventoryRepository) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	snaps, err := r.selectSnapshots(ctx, Query{Table: TableSnapshots, Order: newestFirst, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshots: %w", ErrNotFound)
	}
	return &snaps[0], nil
}

func (r *InventoryRepository) SnapshotByDate(ctx context.Context, date string) (*Snapshot, error) {
	return r.oneSnapshot(ctx, Eq(colDate, date))
}

func (r *InventoryRepository) SnapshotByGroup(ctx context.Context, group string) (*Snapshot, error) {
	return r.oneSnapshot(ctx, Eq(colGroupID, group))
}

// PreviousSnapshot returns the most recent parent other than exclude, the seed source for
// a new day. ErrNotFound means there is nothing to carry forward.
func (r *InventoryRepository) PreviousSnapshot(ctx context.Context, exclude string) (*Snapshot, error) {
	snaps, err := r.selectSnapshots(ctx, Query{Table: TableSnapshots, Order: newestFirst, Limit: 2})
	if err != nil {
		return nil, err
	}
	for _, s := range snaps {
		if s.GroupID != exclude {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("no previous snapshot: %w", ErrNotFound)
}

func (r *InventoryRepository) InsertSnapshot(ctx context.Context, snap Snapshot) (*Snapshot, error) {
	recs, err := r.b.Insert(ctx, TableSnapshots, Record{
		colDate:    snap.Date,
		colGroupID: snap.GroupID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot for %s: %w", snap.Date, err)
	}

	var stored Snapshot
	if err := Decode(recs[0], &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteSnapshot removes a parent and its lines. Only compensation and the pending sweep call it.
func (r *InventoryRepository) DeleteSnapshot(ctx context.Context, group string) error {
	if _, err := r.b.Delete(ctx, TableInventoryLines, Eq(colGroupID, group)); err != nil {
		return fmt.Errorf("failed to delete lines of %s: %w", group, err)
	}
	if _, err := r.b.Delete(ctx, TableSnapshots, Eq(colGroupID, group)); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", group, err)
	}
	return nil
}

// =============================================================================
// PENDING MARKERS
// =============================================================================

// MarkPending records that a snapshot for group is being created without a transaction.
// The marker outlives a crash and is what the pending sweep works from.
func (r *InventoryRepository) MarkPending(ctx context.Context, group, date string) error {
	if _, err := r.b.Insert(ctx, TablePendingSnapshots, Record{colGroupID: group, colDate: date}); err != nil {
		return fmt.Errorf("failed to mark snapshot %s pending: %w", group, err)
	}
	return nil
}

// ClearPending drops the marker once the snapshot is complete or fully removed.
func (r *InventoryRepository) ClearPending(ctx context.Context, group string) error {
	if _, err := r.b.Delete(ctx, TablePendingSnapshots, Eq(colGroupID, group)); err != nil {
		return fmt.Errorf("failed to clear pending marker of %s: %w", group, err)
	}
	return nil
}

// PendingBefore returns up to limit markers dated strictly before date, oldest first.
func (r *InventoryRepository) PendingBefore(ctx context.Context, date string, limit int) ([]PendingSnapshot, error) {
	recs, err := r.b.Select(ctx, Query{
		Table: TablePendingSnapshots,
		Order: []Order{{Column: colDate}, {Column: colID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending snapshots: %w", err)
	}
	var all []PendingSnapshot
	if err := Decode(recs, &all); err != nil {
		return nil, err
	}

	out := []PendingSnapshot{}
	for _, p := range all {
		if p.Date >= date {
			break
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *InventoryRepository) selectSnapshots(ctx context.Context, q Query) ([]Snapshot, error) {
	recs, err := r.b.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	snaps := []Snapshot{}
	if err := Decode(recs, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (r *InventoryRepository) oneSnapshot(ctx context.Context, f Filter) (*Snapshot, error) {
	snaps, err := r.selectSnapshots(ctx, Query{Table: TableSnapshots, Filters: []Filter{f}, Order: newestFirst, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("snapshot %s=%v: %w", f.Column, f.Value, ErrNotFound)
	}
	return &snaps[0], nil
}

// =============================================================================
// SNAPSHOT LINES
// =============================================================================

// Lines returns the lines of one group in insertion order.
func (r *InventoryRepository) Lines(ctx context.Context, group string) ([]InventoryLine, error) {
	recs, err := r.b.Select(ctx, Query{
		Table:   TableInventoryLines,
		Filters: []Filter{Eq(colGroupID, group)},
		Order:   []Order{{Column: colID}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list lines of %s: %w", group, err)
	}

	lines := []InventoryLine{}
	if err := Decode(recs, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *InventoryRepository) CountLines(ctx context.Context, group string) (int, error) {
	return r.b.Count(ctx, TableInventoryLines, Eq(colGroupID, group))
}

// InsertLines bulk-inserts lines and returns them with their generated ids.
func (r *InventoryRepository) InsertLines(ctx context.Context, lines []InventoryLine) ([]InventoryLine, error) {
	if len(lines) == 0 {
		return []InventoryLine{}, nil
	}

	rows := make([]Record, len(lines))
	for i, l := range lines {
		rows[i] = lineFields(l)
		rows[i][colGroupID] = l.GroupID
	}

	recs, err := r.b.Insert(ctx, TableInventoryLines, rows...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %d inventory lines: %w", len(lines), err)
	}

	stored := []InventoryLine{}
	if err := Decode(recs, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// UpdateLine writes the item name and the three quantities of one line by id.
func (r *InventoryRepository) UpdateLine(ctx context.Context, line InventoryLine) error {
	if err := r.b.Update(ctx, TableInventoryLines, line.ID, lineFields(line)); err != nil {
		return fmt.Errorf("failed to update inventory line %d: %w", line.ID, err)
	}
	return nil
}

func lineFields(l InventoryLine) Record {
	return Record{
		colItemName:       l.ItemName,
		colBeginningStock: l.BeginningStock.String(),
		colQtyUsed:        l.QtyUsed.String(),
		colEndingStock:    l.EndingStock.String(),
	}
}
