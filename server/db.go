package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// dialect is what the store needs to know about a storage engine: the
// database/sql driver name, its schema and how to read its constraint errors.
type dialect struct {
	driver   string
	schema   string
	classify func(error) (kind error, detail string)
}

var dialects = map[string]*dialect{
	"pgx":     {driver: "pgx", schema: postgresSchema, classify: classifyPostgres},
	"sqlite3": {driver: "sqlite3", schema: sqliteSchema, classify: classifySQLite},
}

// enumConstraints are the CHECK constraints guarding closed enumerations.
var enumConstraints = []string{
	"users_role_check",
	"group_members_role_check",
	"tasks_status_check",
	"tasks_priority_check",
}

func lookupDialect(driver string) (*dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

func openDB(ctx context.Context, cfg DatabaseConfig) (*sql.DB, *dialect, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	dsn := cfg.URL
	if d.driver == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	if d.driver == "sqlite3" {
		// one writer at a time; transactions never touch the pool
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	return db, d, nil
}

// sqliteDSN turns on the pragmas the store relies on unless the caller set them.
func sqliteDSN(dsn string) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	defaults := map[string]string{
		"_foreign_keys": "on",
		"_busy_timeout": "5000",
		"_txlock":       "immediate",
	}
	for k, v := range defaults {
		if q.Get(k) == "" {
			q.Set(k, v)
		}
	}
	return path + "?" + q.Encode()
}

func classifyPostgres(err error) (error, string) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, ""
	}
	switch pgErr.Code {
	case "23505":
		return ErrDuplicateKey, pgErr.ConstraintName
	case "23503":
		return ErrForeignKey, pgErr.ConstraintName
	case "23514":
		return classifyCheck(pgErr.ConstraintName), pgErr.ConstraintName
	case "23502":
		return ErrInvalidInput, pgErr.ColumnName + " must not be null"
	case "22P02", "22007", "22008":
		return ErrInvalidInput, pgErr.Message
	}
	return nil, ""
}

func classifySQLite(err error) (error, string) {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) || sqErr.Code != sqlite3.ErrConstraint {
		return nil, ""
	}
	msg := sqErr.Error()
	switch sqErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ErrDuplicateKey, strings.TrimPrefix(msg, "UNIQUE constraint failed: ")
	case sqlite3.ErrConstraintForeignKey:
		return ErrForeignKey, msg
	case sqlite3.ErrConstraintTrigger:
		// on delete restrict is enforced as a trigger
		if strings.Contains(msg, "FOREIGN KEY constraint failed") {
			return ErrForeignKey, msg
		}
	case sqlite3.ErrConstraintCheck:
		name := strings.TrimPrefix(msg, "CHECK constraint failed: ")
		return classifyCheck(name), name
	case sqlite3.ErrConstraintNotNull:
		return ErrInvalidInput, msg
	}
	return nil, ""
}

func classifyCheck(constraint string) error {
	if slices.ContainsFunc(enumConstraints, func(c string) bool { return strings.Contains(constraint, c) }) {
		return ErrInvalidEnum
	}
	return ErrInvalidInput
}
