package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestStore opens a migrated SQLite store in a temp dir. Its clock
// advances one second per call so orderings are deterministic.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, d, err := openDB(context.Background(), DatabaseConfig{
		Driver: "sqlite3",
		URL:    filepath.Join(t.TempDir(), "taskhub.db"),
	})
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewStore(db, d)
	s.bcryptCost = bcrypt.MinCost
	var tick atomic.Int64
	s.now = func() time.Time { return testEpoch.Add(time.Duration(tick.Add(1)) * time.Second) }
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func mustUser(t *testing.T, s *Store, name string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), NewUser{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret-" + name,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func mustGroup(t *testing.T, s *Store, name string) Group {
	t.Helper()
	g, err := s.CreateGroup(context.Background(), NewGroup{Name: name})
	if err != nil {
		t.Fatalf("CreateGroup(%s): %v", name, err)
	}
	return g
}

func mustTask(t *testing.T, s *Store, nt NewTask) TaskView {
	t.Helper()
	v, err := s.CreateTask(context.Background(), nt)
	if err != nil {
		t.Fatalf("CreateTask(%s): %v", nt.Title, err)
	}
	return v
}

func mustComment(t *testing.T, s *Store, taskID, userID int64, content string) CommentView {
	t.Helper()
	c, err := s.CreateComment(context.Background(), NewComment{TaskID: taskID, UserID: userID, Content: content})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	return c
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func ptr[T any](v T) *T { return &v }
