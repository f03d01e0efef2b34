package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Store is the relational domain store. It holds no domain state of its own:
// uniqueness, references and cascades are left to the engine's constraints
// and every multi-statement write runs in one transaction.
type Store struct {
	db         *sql.DB
	dialect    *dialect
	now        func() time.Time
	bcryptCost int
}

func NewStore(db *sql.DB, d *dialect) *Store {
	return &Store{
		db:         db,
		dialect:    d,
		now:        func() time.Time { return time.Now().UTC() },
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// fail classifies err into a *StoreError when the engine reported a
// constraint violation or a missing row, and annotates it with op.
func (s *Store) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		if se.Op != "" {
			return se
		}
		return &StoreError{Kind: se.Kind, Op: op, Detail: se.Detail}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &StoreError{Kind: ErrNotFound, Op: op}
	}
	if kind, detail := s.dialect.classify(err); kind != nil {
		return &StoreError{Kind: kind, Op: op, Detail: detail}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// setList accumulates "col=$n" assignments for a partial update.
type setList struct {
	cols []string
	args []any
}

func (l *setList) add(col string, v any) {
	l.args = append(l.args, v)
	l.cols = append(l.cols, fmt.Sprintf("%s=$%d", col, len(l.args)))
}

// update runs "update table set ... where id=$n" with updated_at always
// refreshed, so an empty setList still touches the row.
func (s *Store) update(ctx context.Context, q queryer, table string, id int64, l setList) (int64, error) {
	l.add("updated_at", s.now())
	query := fmt.Sprintf("update %s set %s where id=$%d", table, strings.Join(l.cols, ", "), len(l.args)+1)
	res, err := q.ExecContext(ctx, query, append(l.args, id)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func deleteByID(ctx context.Context, q queryer, table string, id int64) (int64, error) {
	res, err := q.ExecContext(ctx, fmt.Sprintf("delete from %s where id=$1", table), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// collect drains rows through scan; it always returns a non-nil slice.
func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
