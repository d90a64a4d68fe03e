package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	supa "github.com/nedpals/supabase-go"
	postgrest "github.com/nedpals/supabase-go/postgrest/pkg"

	"trcinventory/internal/logger"
)

// =============================================================================
// SUPABASE BACKEND
// =============================================================================

// SupabaseBackend talks to the hosted PostgREST tables. It has no transactions, so callers
// that need atomicity fall back to compensation. Every request carries the caller's context;
// a cancelled context aborts the HTTP request itself.
type SupabaseBackend struct {
	client *supa.Client
}

func NewSupabaseBackend(url, key string) *SupabaseBackend {
	return &SupabaseBackend{client: supa.CreateClient(url, key)}
}

func (b *SupabaseBackend) Close() error {
	b.client.DB.CloseIdleConnections()
	return nil
}

// check logs and wraps a failed call. Cancellation is reported as is.
func (b *SupabaseBackend) check(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.LogWarn("Supabase %s abandoned: %v", what, err)
		return fmt.Errorf("supabase %s: %w", what, err)
	}
	logger.LogError("Supabase %s failed: %v", what, err)
	return fmt.Errorf("supabase %s failed: %w", what, translateRemoteError(err))
}

func (b *SupabaseBackend) Select(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if q.Offset > 0 && q.Limit == 0 {
		return nil, fmt.Errorf("supabase select from %s needs a limit with an offset", q.Table)
	}
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ",")
	}

	sel := b.client.DB.From(q.Table).Select(cols)
	for _, f := range q.Filters {
		sel.Eq(f.Column, filterValue(f.Value))
	}
	if len(q.Order) > 0 {
		sel.OrderBy(q.Order[0].Column, orderDirection(q.Order))
	}
	if q.Limit > 0 {
		sel.LimitWithOffset(q.Limit, q.Offset)
	}

	var recs []Record
	if err := b.check("select from "+q.Table, sel.ExecuteWithContext(ctx, &recs)); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// Count asks PostgREST for an exact count with a HEAD request; no rows are transferred.
func (b *SupabaseBackend) Count(ctx context.Context, table string, filters ...Filter) (int, error) {
	if err := (Query{Table: table, Filters: filters}).validate(); err != nil {
		return 0, err
	}

	sel := b.client.DB.From(table).Select(colID).Count()
	for _, f := range filters {
		sel.Eq(f.Column, filterValue(f.Value))
	}

	var n int
	if err := b.check("count "+table, sel.ExecuteWithContext(ctx, &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *SupabaseBackend) Insert(ctx context.Context, table string, rows ...Record) ([]Record, error) {
	if len(rows) == 0 {
		return []Record{}, nil
	}
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	var out []Record
	err := b.client.DB.From(table).Insert(rows).ExecuteWithContext(ctx, &out)
	if err := b.check("insert into "+table, err); err != nil {
		return nil, err
	}
	if len(out) != len(rows) {
		return nil, fmt.Errorf("supabase insert into %s returned %d rows, expected %d", table, len(out), len(rows))
	}
	return out, nil
}

func (b *SupabaseBackend) Update(ctx context.Context, table string, id int64, fields Record) error {
	if err := checkIdent(table); err != nil {
		return err
	}

	var out []Record
	err := b.client.DB.From(table).Update(fields).Eq(colID, strconv.FormatInt(id, 10)).ExecuteWithContext(ctx, &out)
	if err := b.check("update "+table, err); err != nil {
		return err
	}
	if len(out) == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

// Delete removes matching rows. PostgREST answers with no body, so the count is always 0.
func (b *SupabaseBackend) Delete(ctx context.Context, table string, filters ...Filter) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("refusing to delete from %s without a filter", table)
	}
	if err := (Query{Table: table, Filters: filters}).validate(); err != nil {
		return 0, err
	}

	del := b.client.DB.From(table).Delete()
	for _, f := range filters {
		del.Eq(f.Column, filterValue(f.Value))
	}
	if err := b.check("delete from "+table, del.ExecuteWithContext(ctx, nil)); err != nil {
		return 0, err
	}
	return 0, nil
}

// orderDirection renders the keys after the first as further terms of the order
// parameter; OrderBy itself takes one column.
func orderDirection(order []Order) string {
	parts := []string{direction(order[0])}
	for _, o := range order[1:] {
		parts = append(parts, o.Column+"."+direction(o))
	}
	return strings.Join(parts, ",")
}

func direction(o Order) string {
	if o.Descending {
		return "desc"
	}
	return "asc"
}

func filterValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// translateRemoteError maps PostgreSQL error codes surfaced by PostgREST.
func translateRemoteError(err error) error {
	var re *postgrest.RequestError
	if !errors.As(err, &re) {
		return err
	}
	switch {
	case re.Code == "23505" || (re.Code == "" && re.HTTPStatusCode == http.StatusConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case re.Code == "23503":
		return fmt.Errorf("%w: missing parent row: %v", ErrNotFound, err)
	}
	return err
}
