package main

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrDuplicateMembership also matches ErrDuplicateKey.
	ErrDuplicateMembership = fmt.Errorf("duplicate membership: %w", ErrDuplicateKey)
	ErrForeignKey          = errors.New("foreign key violation")
	ErrInvalidEnum         = errors.New("invalid enum value")
	ErrInvalidInput        = errors.New("invalid input")
)

// StoreError is a classified failure at the store boundary. Kind is one of
// the sentinels above; errors.Is(err, ErrNotFound) and friends see through it.
type StoreError struct {
	Kind   error
	Op     string
	Detail string
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Kind }

func storeErr(op string, kind error, format string, args ...any) error {
	return &StoreError{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

func notFound(op, entity string, id int64) error {
	return storeErr(op, ErrNotFound, "%s %d", entity, id)
}
