package data

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// sagaTimeout bounds a multi-step write on a backend without transactions.
const sagaTimeout = 30 * time.Second

// =============================================================================
// BACKEND CONTRACT
// =============================================================================

var (
	// ErrNotFound is returned when an update or lookup targets a row that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record conflicts with an existing row")
)

// Record is one row as returned by a backend, keyed by column name.
type Record map[string]interface{}

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  interface{}
}

// Eq builds an equality filter.
func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Value: value}
}

// Order sorts a select by one column.
type Order struct {
	Column     string
	Descending bool
}

// Query describes a table-level select. A zero Limit means no limit.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
	Offset  int
	// Lock holds the matching rows until the surrounding transaction ends, on backends
	// that take row locks.
	Lock bool
}

// Backend is the thin data-access wrapper every view goes through.
type Backend interface {
	Select(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, table string, filters ...Filter) (int, error)
	// Insert stores rows and returns them as stored, generated ids included.
	Insert(ctx context.Context, table string, rows ...Record) ([]Record, error)
	// Update changes the given columns of the row with the given id.
	Update(ctx context.Context, table string, id int64, fields Record) error
	// Delete removes matching rows. At least one filter is required.
	Delete(ctx context.Context, table string, filters ...Filter) (int, error)
	Close() error
}

// Transactor is implemented by backends that can run several calls atomically.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Backend) error) error
}

// Atomic runs fn inside a transaction when b supports one and reports whether it did.
// Without one, fn gets a context the caller cannot cancel, bounded by sagaTimeout, so every
// step either completes or fails with its outcome known.
func Atomic(ctx context.Context, b Backend, fn func(context.Context, Backend) error) (bool, error) {
	if tx, ok := b.(Transactor); ok {
		return true, tx.WithTx(ctx, func(tb Backend) error { return fn(ctx, tb) })
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sagaTimeout)
	defer cancel()
	return false, fn(sctx, b)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}

func (q Query) validate() error {
	if err := checkIdent(q.Table); err != nil {
		return err
	}
	for _, c := range q.Columns {
		if c == "*" {
			continue
		}
		if err := checkIdent(c); err != nil {
			return err
		}
	}
	for _, f := range q.Filters {
		if err := checkIdent(f.Column); err != nil {
			return err
		}
	}
	for _, o := range q.Order {
		if err := checkIdent(o.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("negative limit or offset")
	}
	return nil
}
