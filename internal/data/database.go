package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"trcinventory/internal/logger"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Dialect names the SQL flavour a SQLBackend speaks.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// Database connection pool configuration
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = time.Hour
	connMaxIdleTime = time.Minute * 15
	queryTimeout    = time.Second * 30
	openRetries     = 3
)

// Applied to every sqlite connection through the DSN so pooled connections agree.
var sqlitePragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"temp_store(MEMORY)",
}

// =============================================================================
// SQL BACKEND
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SQLBackend implements Backend over database/sql. Inside WithTx, db is nil and q is the *sql.Tx.
type SQLBackend struct {
	db      *sql.DB
	q       queryer
	dialect Dialect
}

// OpenSQLite opens (creating if needed) a sqlite database file and its schema.
func OpenSQLite(path string) (*SQLBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	params := make([]string, 0, len(sqlitePragmas)+1)
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate")
	dsn := "file:" + path + "?" + strings.Join(params, "&")

	return open(string(DialectSQLite), dsn, DialectSQLite)
}

// OpenMySQL opens a MySQL database. ClientFoundRows is forced so an update that leaves a
// row unchanged still reports it as matched.
func OpenMySQL(dsn string) (*SQLBackend, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ClientFoundRows = true
	return open(string(DialectMySQL), cfg.FormatDSN(), DialectMySQL)
}

func open(driver, dsn string, dialect Dialect) (*SQLBackend, error) {
	db, err := openWithRetry(driver, dsn, openRetries)
	if err != nil {
		return nil, err
	}
	b := &SQLBackend{db: db, q: db, dialect: dialect}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := b.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func openWithRetry(driver, dataSourceName string, maxRetries int) (*sql.DB, error) {
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		var db *sql.DB
		db, err = sql.Open(driver, dataSourceName)
		if err != nil {
			logger.LogWarn("Database connection attempt %d failed: %v", attempt, err)
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			return nil, fmt.Errorf("failed to open database after %d attempts: %w", maxRetries, err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		db.SetConnMaxIdleTime(connMaxIdleTime)

		// Test the connection
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		err = db.PingContext(ctx)
		cancel()

		if err != nil {
			logger.LogWarn("Database ping attempt %d failed: %v", attempt, err)
			db.Close()
			if attempt < maxRetries {
				time.Sleep(time.Duration(attempt) * time.Second)
				continue
			}
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, err)
		}

		logger.LogInfo("Database connection established successfully (%s, attempt %d)", driver, attempt)
		return db, nil
	}

	return nil, fmt.Errorf("failed to initialize database after %d attempts: %w", maxRetries, err)
}

// Dialect reports the SQL flavour.
func (b *SQLBackend) Dialect() Dialect {
	return b.dialect
}

// Close closes the database connection gracefully
func (b *SQLBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Ping checks the connection.
func (b *SQLBackend) Ping(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second*2)
	defer cancel()
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection unhealthy: %w", err)
	}
	return nil
}

// CreateTables creates the schema for the backend's dialect if missing.
func (b *SQLBackend) CreateTables(ctx context.Context) error {
	for _, stmt := range schemaFor(b.dialect) {
		if _, err := b.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// WithTx runs fn against a transaction-scoped backend. Nested calls reuse the open transaction.
func (b *SQLBackend) WithTx(ctx context.Context, fn func(Backend) error) (err error) {
	if b.db == nil {
		return fn(b)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&SQLBackend{q: tx, dialect: b.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.LogError("Transaction rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return nil
}

// =============================================================================
// GENERIC DATABASE OPERATIONS
// =============================================================================

func (b *SQLBackend) Select(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	query, args := selectSQL(b.dialect, q)
	return b.query(ctx, query, args...)
}

// selectSQL renders q for dialect. Lock becomes FOR UPDATE on MySQL; sqlite transactions
// already hold the write lock from BEGIN IMMEDIATE.
func selectSQL(dialect Dialect, q Query) (string, []interface{}) {
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, q.Table)
	where, args := whereClause(q.Filters)
	sb.WriteString(where)

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts = append(parts, o.Column+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	switch {
	case q.Limit > 0:
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0 && dialect == DialectSQLite:
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, q.Offset)
	case q.Offset > 0:
		sb.WriteString(" LIMIT 18446744073709551615 OFFSET ?")
		args = append(args, q.Offset)
	}

	if q.Lock && dialect == DialectMySQL {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String(), args
}

func (b *SQLBackend) Count(ctx context.Context, table string, filters ...Filter) (int, error) {
	if err := (Query{Table: table, Filters: filters}).validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(filters)
	recs, err := b.query(ctx, "SELECT COUNT(*) AS n FROM "+table+where, args...)
	if err != nil {
		return 0, err
	}
	var out struct {
		N int `db:"n"`
	}
	if len(recs) == 1 {
		if err := Decode(recs[0], &out); err != nil {
			return 0, err
		}
	}
	return out.N, nil
}

func (b *SQLBackend) Insert(ctx context.Context, table string, rows ...Record) ([]Record, error) {
	if len(rows) == 0 {
		return []Record{}, nil
	}
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	// A bulk insert is all-or-nothing.
	if len(rows) > 1 && b.db != nil {
		var out []Record
		err := b.WithTx(ctx, func(tx Backend) error {
			var err error
			out, err = tx.Insert(ctx, table, rows...)
			return err
		})
		return out, err
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		cols := make([]string, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		if err := checkIdent(cols...); err != nil {
			return nil, err
		}

		args := make([]interface{}, len(cols))
		marks := make([]string, len(cols))
		for i, c := range cols {
			args[i] = row[c]
			marks[i] = "?"
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))
		res, err := b.exec(ctx, stmt, args...)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read inserted id: %w", err)
		}

		stored, err := b.query(ctx, "SELECT * FROM "+table+" WHERE id = ?", id)
		if err != nil {
			return nil, err
		}
		if len(stored) != 1 {
			return nil, fmt.Errorf("inserted row %d not readable from %s", id, table)
		}
		out = append(out, stored[0])
	}
	return out, nil
}

func (b *SQLBackend) Update(ctx context.Context, table string, id int64, fields Record) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("update of %s %d has no fields", table, id)
	}

	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := checkIdent(cols...); err != nil {
		return err
	}

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, fields[c])
	}
	args = append(args, id)

	res, err := b.exec(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, table string, filters ...Filter) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("refusing to delete from %s without a filter", table)
	}
	if err := (Query{Table: table, Filters: filters}).validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(filters)
	res, err := b.exec(ctx, "DELETE FROM "+table+where, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// exec executes a statement with a timeout and translated errors
func (b *SQLBackend) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := b.q.ExecContext(ctx, query, args...)
	if err != nil {
		logger.LogError("Database exec failed: query=%s, error=%v", query, err)
		return nil, fmt.Errorf("database execution failed: %w", translateError(err))
	}
	return result, nil
}

// query executes a select with a timeout and reads every row before returning
func (b *SQLBackend) query(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := b.q.QueryContext(ctx, query, args...)
	if err != nil {
		logger.LogError("Database query failed: query=%s, error=%v", query, err)
		return nil, fmt.Errorf("database query failed: %w", translateError(err))
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return recs, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Record{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			v := vals[i]
			if raw, ok := v.([]byte); ok {
				v = string(raw)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func whereClause(filters []Filter) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	args := make([]interface{}, len(filters))
	for i, f := range filters {
		parts[i] = f.Column + " = ?"
		args[i] = f.Value
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// translateError maps driver constraint errors onto ErrConflict / ErrNotFound.
func translateError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: missing parent row: %v", ErrNotFound, err)
		}
		// Without extended result codes only the primary code is set.
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			switch msg := se.Error(); {
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%w: %v", ErrConflict, err)
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%w: missing parent row: %v", ErrNotFound, err)
			}
		}
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case 1452:
			return fmt.Errorf("%w: missing parent row: %v", ErrNotFound, err)
		}
	}
	return err
}
