package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestSqliteDSN_AddsPragmasKeepingOverrides(t *testing.T) {
	dsn := sqliteDSN("/tmp/taskhub.db?_busy_timeout=100")
	path, rawQuery, ok := strings.Cut(dsn, "?")
	if !ok || path != "/tmp/taskhub.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if q.Get("_busy_timeout") != "100" || q.Get("_foreign_keys") != "on" || q.Get("_txlock") != "immediate" {
		t.Fatalf("unexpected query %v", q)
	}
}

func TestClassifyPostgres(t *testing.T) {
	cases := []struct {
		err  *pgconn.PgError
		kind error
	}{
		{&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, ErrDuplicateKey},
		{&pgconn.PgError{Code: "23503", ConstraintName: "tasks_group_id_fkey"}, ErrForeignKey},
		{&pgconn.PgError{Code: "23514", ConstraintName: "tasks_status_check"}, ErrInvalidEnum},
		{&pgconn.PgError{Code: "23514", ConstraintName: "comments_content_check"}, ErrInvalidInput},
		{&pgconn.PgError{Code: "23502", ColumnName: "title"}, ErrInvalidInput},
		{&pgconn.PgError{Code: "22007", Message: "invalid input syntax for type date"}, ErrInvalidInput},
	}
	for _, tc := range cases {
		kind, _ := classifyPostgres(fmt.Errorf("exec: %w", tc.err))
		if kind != tc.kind {
			t.Errorf("code %s (%s): got %v, want %v", tc.err.Code, tc.err.ConstraintName, kind, tc.kind)
		}
	}

	if kind, _ := classifyPostgres(&pgconn.PgError{Code: "40001"}); kind != nil {
		t.Errorf("serialization failure classified as %v", kind)
	}
	if kind, _ := classifyPostgres(errors.New("boom")); kind != nil {
		t.Errorf("plain error classified as %v", kind)
	}
}

func TestStoreFail_WrapsUnclassifiedErrors(t *testing.T) {
	s := &Store{dialect: dialects["pgx"]}
	base := errors.New("connection reset")
	err := s.fail("get task", base)
	if !errors.Is(err, base) || !strings.HasPrefix(err.Error(), "get task: ") {
		t.Fatalf("unexpected wrap: %v", err)
	}
	var se *StoreError
	if errors.As(err, &se) {
		t.Fatalf("unclassified error became a StoreError: %v", err)
	}

	err = s.fail("create user", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	if !errors.As(err, &se) || se.Op != "create user" || se.Detail != "users_username_key" {
		t.Fatalf("unexpected store error: %#v", err)
	}
	if err.Error() != "create user: duplicate key: users_username_key" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestLookupDialect(t *testing.T) {
	for _, name := range []string{"pgx", "sqlite3"} {
		if _, err := lookupDialect(name); err != nil {
			t.Errorf("lookupDialect(%s): %v", name, err)
		}
	}
	if _, err := lookupDialect("mysql"); err == nil {
		t.Errorf("expected mysql to be rejected")
	}
}
