package main

import "slices"

// Role is both a user's global role and a member's role within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

var (
	roles      = []Role{RoleAdmin, RoleMember}
	statuses   = []TaskStatus{StatusTodo, StatusInProgress, StatusCompleted}
	priorities = []TaskPriority{PriorityHigh, PriorityMedium, PriorityLow}
)

func (r Role) Validate() error         { return checkEnum("role", r, roles) }
func (s TaskStatus) Validate() error   { return checkEnum("status", s, statuses) }
func (p TaskPriority) Validate() error { return checkEnum("priority", p, priorities) }

func checkEnum[T ~string](field string, v T, allowed []T) error {
	if slices.Contains(allowed, v) {
		return nil
	}
	return storeErr("", ErrInvalidEnum, "%s %q not in %v", field, string(v), allowed)
}

func roleOrDefault(r Role) Role {
	if r == "" {
		return RoleMember
	}
	return r
}

func statusOrDefault(s TaskStatus) TaskStatus {
	if s == "" {
		return StatusTodo
	}
	return s
}

func priorityOrDefault(p TaskPriority) TaskPriority {
	if p == "" {
		return PriorityMedium
	}
	return p
}
