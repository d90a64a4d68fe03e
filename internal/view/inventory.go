package view

import (
	"context"
	"fmt"
	"time"

	"trcinventory/internal/data"
	"trcinventory/internal/inventory"
)

// InventorySource is the part of the API the inventory screen needs.
type InventorySource interface {
	Snapshots(ctx context.Context) ([]data.Snapshot, error)
	CreateSnapshot(ctx context.Context) (*data.SnapshotCreation, error)
	Lines(ctx context.Context, group string) ([]data.InventoryLine, error)
	AddLine(ctx context.Context, group string) (*data.InventoryLine, error)
	UpdateLine(ctx context.Context, line data.InventoryLine) (*data.InventoryLine, error)
}

type InventoryState int

const (
	StateIdle InventoryState = iota
	StateListLoaded
	StateSnapshotSelected
	StateRowEditing
)

func (s InventoryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListLoaded:
		return "list-loaded"
	case StateSnapshotSelected:
		return "snapshot-selected"
	case StateRowEditing:
		return "row-editing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// InventoryView is the daily inventory screen: the list of snapshots, the lines of the
// selected one, and at most one row being edited.
type InventoryView struct {
	lifetime

	src InventorySource
	loc *time.Location
	now func() time.Time

	state     InventoryState
	snapshots []data.Snapshot
	selected  *data.Snapshot
	lines     []data.InventoryLine
	edit      *rowEdit[data.InventoryLine]
	gen       int // bumped on every selection change
}

func NewInventoryView(parent context.Context, src InventorySource, loc *time.Location) *InventoryView {
	if loc == nil {
		loc = time.Local
	}
	v := &InventoryView{src: src, loc: loc, now: time.Now}
	v.init(parent)
	return v
}

func (v *InventoryView) today() string {
	return v.now().In(v.loc).Format(data.DateLayout)
}

// Mount loads the snapshot list, newest first.
func (v *InventoryView) Mount() error {
	if err := v.begin(); err != nil {
		return err
	}
	snaps, err := v.src.Snapshots(v.ctx)
	return v.commit(err, func() {
		v.snapshots = nonNil(snaps)
		if v.state == StateIdle {
			v.state = StateListLoaded
		}
	})
}

// Select loads the lines of one snapshot, replacing whatever lines were shown.
func (v *InventoryView) Select(group string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	lines, err := v.src.Lines(v.ctx, group)
	return v.commit(err, func() {
		if gen != v.gen {
			return
		}
		snap := data.Snapshot{GroupID: group}
		for _, s := range v.snapshots {
			if s.GroupID == group {
				snap = s
				break
			}
		}
		v.selected = &snap
		v.lines = nonNil(lines)
		v.edit = nil
		v.state = StateSnapshotSelected
	})
}

// CreateSnapshot opens today's snapshot and selects it. A snapshot for today already in the
// loaded list is refused without contacting the server; the server enforces the same rule.
func (v *InventoryView) CreateSnapshot() (*data.SnapshotCreation, error) {
	today := v.today()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	for _, s := range v.snapshots {
		if s.Date == today {
			v.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", inventory.ErrSnapshotExists, today)
		}
	}
	v.mu.Unlock()

	created, err := v.src.CreateSnapshot(v.ctx)
	err = v.commit(err, func() {
		v.snapshots = append([]data.Snapshot{created.Snapshot}, v.snapshots...)
		snap := created.Snapshot
		v.gen++
		v.selected = &snap
		v.lines = append([]data.InventoryLine{}, created.Lines...)
		v.edit = nil
		v.state = StateSnapshotSelected
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddLine appends a placeholder line to the selected snapshot.
func (v *InventoryView) AddLine() (*data.InventoryLine, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.selected == nil {
		v.mu.Unlock()
		return nil, ErrNoSnapshotSelected
	}
	group, gen := v.selected.GroupID, v.gen
	v.mu.Unlock()

	line, err := v.src.AddLine(v.ctx, group)
	err = v.commit(err, func() {
		if gen == v.gen {
			v.lines = append(v.lines, *line)
		}
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Deselect goes back to the snapshot list.
func (v *InventoryView) Deselect() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return
	}
	v.gen++
	v.selected = nil
	v.lines = nil
	v.edit = nil
	v.state = StateListLoaded
}

// BeginEdit starts a buffered edit of one line, dropping any other edit in progress.
func (v *InventoryView) BeginEdit(id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if v.selected == nil {
		return ErrNoSnapshotSelected
	}
	i := v.indexOf(id)
	if i < 0 {
		return fmt.Errorf("inventory line %d: %w", id, data.ErrNotFound)
	}
	v.edit = &rowEdit[data.InventoryLine]{id: id, original: v.lines[i], buffer: v.lines[i]}
	v.state = StateRowEditing
	return nil
}

// Buffer changes the line being edited. Nothing is written until Save.
func (v *InventoryView) Buffer(change func(*data.InventoryLine)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return ErrNotEditing
	}
	change(&v.edit.buffer)
	v.edit.buffer.ID = v.edit.id
	return nil
}

// Cancel drops the buffered edit.
func (v *InventoryView) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit != nil {
		v.edit = nil
		v.state = StateSnapshotSelected
	}
}

// Save shows the buffered line at once and writes it. If the write fails the line goes
// back to how it was before the edit.
func (v *InventoryView) Save() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.edit == nil {
		v.mu.Unlock()
		return ErrNotEditing
	}
	e := *v.edit
	v.edit = nil
	v.state = StateSnapshotSelected
	if i := v.indexOf(e.id); i >= 0 {
		v.lines[i] = e.buffer
	}
	v.mu.Unlock()

	_, err := v.src.UpdateLine(v.ctx, e.buffer)
	if err == nil {
		return v.commit(nil, func() {})
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if i := v.indexOf(e.id); i >= 0 {
		v.lines[i] = e.original
	}
	return err
}

func (v *InventoryView) indexOf(id int64) int {
	for i, l := range v.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (v *InventoryView) State() InventoryState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *InventoryView) Snapshots() []data.Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]data.Snapshot{}, v.snapshots...)
}

func (v *InventoryView) Selected() (data.Snapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return data.Snapshot{}, false
	}
	return *v.selected, true
}

func (v *InventoryView) Lines() []data.InventoryLine {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]data.InventoryLine{}, v.lines...)
}

// Editing returns the buffered line, if any.
func (v *InventoryView) Editing() (data.InventoryLine, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.edit == nil {
		return data.InventoryLine{}, false
	}
	return v.edit.buffer, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
