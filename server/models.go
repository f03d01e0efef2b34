package main

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserCredentials carries the stored password hash; only GetUserByEmail returns it.
type UserCredentials struct {
	User
	PasswordHash string `json:"-"`
}

type NewUser struct {
	Username string
	Email    string
	Password string
	Role     Role
}

type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *Role   `json:"role"`
}

type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewGroup struct {
	Name        string
	Description *string
	// CreatorID, when set, joins the group as its first admin.
	CreatorID *int64
}

type GroupPatch struct {
	Name        *string          `json:"name"`
	Description Nullable[string] `json:"description"`
}

// GroupMember is one entry of a group's member list.
type GroupMember struct {
	UserID   int64     `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"group_role"`
	JoinedAt time.Time `json:"joined_at"`
}

type GroupDetail struct {
	Group
	Members []GroupMember `json:"members"`
}

// UserGroup is a group annotated with one user's role in it.
type UserGroup struct {
	Group
	UserRole Role `json:"user_role"`
}

type Membership struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	GroupID     int64        `json:"group_id"`
	AssigneeID  *int64       `json:"assignee_id"`
	DueDate     *Date        `json:"due_date"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskView is a task with its assignee's display fields flattened in.
// Both are nil when the task is unassigned.
type TaskView struct {
	Task
	AssigneeName  *string `json:"assignee_name"`
	AssigneeEmail *string `json:"assignee_email"`
}

type NewTask struct {
	Title       string
	Description *string
	Status      TaskStatus
	Priority    TaskPriority
	GroupID     int64
	AssigneeID  *int64
	DueDate     *Date
}

type TaskPatch struct {
	Title       *string          `json:"title"`
	Description Nullable[string] `json:"description"`
	Status      *TaskStatus      `json:"status"`
	Priority    *TaskPriority    `json:"priority"`
	AssigneeID  Nullable[int64]  `json:"assignee_id"`
	DueDate     Nullable[Date]   `json:"due_date"`
}

// TaskFilter narrows ListGroupTasks; nil fields do not filter.
type TaskFilter struct {
	Status     *TaskStatus
	Priority   *TaskPriority
	AssigneeID *int64
}

// CommentView is a comment joined with its author's username.
type CommentView struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserComment is a comment joined with its parent task's title.
type UserComment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	TaskID    int64     `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewComment struct {
	TaskID  int64
	UserID  int64
	Content string
}

// Nullable is a partial-update slot for a nullable column. Set reports
// whether the caller supplied the field; a supplied nil Value clears it.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func Null[T any]() Nullable[T] { return Nullable[T]{Set: true} }

func Some[T any](v T) Nullable[T] { return Nullable[T]{Set: true, Value: &v} }

func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

const dateLayout = "2006-01-02"

// Date is a calendar day stored in a SQL date column.
type Date struct {
	time.Time
}

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("bad date %q", s)
	}
	return NewDate(t.Date()), nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) { return NewDate(d.Date()).Time, nil }

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Date())
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d *Date) scanText(s string) error {
	if len(s) < len(dateLayout) {
		return fmt.Errorf("bad date %q", s)
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}
