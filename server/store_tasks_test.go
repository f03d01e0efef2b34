package main

import (
	"context"
	"testing"
	"time"
)

func TestStore_CreateTask_DefaultsAndView(t *testing.T) {
	s := newTestStore(t)
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	due := NewDate(2024, time.April, 2)

	v := mustTask(t, s, NewTask{Title: "Fix bug", Description: ptr("crash on start"), GroupID: g.ID, AssigneeID: &alice.ID, DueDate: &due})
	if v.Status != StatusTodo || v.Priority != PriorityMedium {
		t.Fatalf("defaults not applied: %+v", v.Task)
	}
	if v.AssigneeName == nil || *v.AssigneeName != "alice" || v.AssigneeEmail == nil || *v.AssigneeEmail != "alice@example.com" {
		t.Fatalf("assignee not joined: %+v", v)
	}
	if v.DueDate == nil || v.DueDate.String() != "2024-04-02" {
		t.Fatalf("due_date = %v", v.DueDate)
	}

	un := mustTask(t, s, NewTask{Title: "Triage", GroupID: g.ID, Priority: PriorityHigh})
	if un.AssigneeID != nil || un.AssigneeName != nil || un.AssigneeEmail != nil || un.DueDate != nil {
		t.Fatalf("expected unassigned task without due date: %+v", un)
	}
}

func TestStore_CreateTask_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := mustGroup(t, s, "Eng")

	cases := []struct {
		name string
		nt   NewTask
		kind error
	}{
		{"bad status", NewTask{Title: "x", GroupID: g.ID, Status: "done"}, ErrInvalidEnum},
		{"bad priority", NewTask{Title: "x", GroupID: g.ID, Priority: "urgent"}, ErrInvalidEnum},
		{"missing group", NewTask{Title: "x", GroupID: g.ID + 1}, ErrForeignKey},
		{"missing assignee", NewTask{Title: "x", GroupID: g.ID, AssigneeID: ptr(int64(99))}, ErrForeignKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateTask(ctx, tc.nt)
			wantKind(t, err, tc.kind)
		})
	}
	if n := countRows(t, s, `select count(*) from tasks`); n != 0 {
		t.Fatalf("expected no tasks, got %d", n)
	}
}

func TestStore_UpdateTaskStatus_BogusLeavesTaskUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := mustGroup(t, s, "Eng")
	v := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID, Status: StatusInProgress})

	_, err := s.UpdateTaskStatus(ctx, v.ID, "bogus")
	wantKind(t, err, ErrInvalidEnum)

	got, err := s.GetTask(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusInProgress || !got.UpdatedAt.Equal(v.UpdatedAt) {
		t.Fatalf("task changed: %+v", got.Task)
	}

	done, err := s.UpdateTaskStatus(ctx, v.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %q", done.Status)
	}
}

func TestStore_StatusCheckConstraintClassified(t *testing.T) {
	s := newTestStore(t)
	g := mustGroup(t, s, "Eng")
	v := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID})

	_, err := s.db.ExecContext(context.Background(), `update tasks set status='bogus' where id=$1`, v.ID)
	if err == nil {
		t.Fatalf("expected check constraint failure")
	}
	wantKind(t, s.fail("raw update", err), ErrInvalidEnum)
}

func TestStore_UpdateTask_EmptyPatchOnlyTouchesUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	due := NewDate(2024, time.May, 1)
	before := mustTask(t, s, NewTask{Title: "Fix bug", Description: ptr("d"), GroupID: g.ID, AssigneeID: &alice.ID, DueDate: &due})

	after, err := s.UpdateTask(ctx, before.ID, TaskPatch{})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updated_at not refreshed")
	}
	if after.Title != before.Title || *after.Description != *before.Description || after.Status != before.Status ||
		after.Priority != before.Priority || after.GroupID != before.GroupID || *after.AssigneeID != *before.AssigneeID ||
		after.DueDate.String() != before.DueDate.String() || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("fields changed: %+v -> %+v", before.Task, after.Task)
	}
}

func TestStore_UpdateTask_PartialFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	v := mustTask(t, s, NewTask{Title: "Fix bug", Description: ptr("d"), GroupID: g.ID, AssigneeID: &alice.ID})

	high := PriorityHigh
	got, err := s.UpdateTask(ctx, v.ID, TaskPatch{
		Title:       ptr("Fix the bug"),
		Description: Null[string](),
		Priority:    &high,
		DueDate:     Some(NewDate(2024, time.June, 30)),
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if got.Title != "Fix the bug" || got.Description != nil || got.Priority != PriorityHigh || got.DueDate.String() != "2024-06-30" {
		t.Fatalf("unexpected task: %+v", got.Task)
	}
	if got.AssigneeID == nil || *got.AssigneeID != alice.ID || got.Status != StatusTodo {
		t.Fatalf("untouched fields changed: %+v", got.Task)
	}

	bogus := TaskPriority("urgent")
	_, err = s.UpdateTask(ctx, v.ID, TaskPatch{Title: ptr("renamed"), Priority: &bogus})
	wantKind(t, err, ErrInvalidEnum)
	if cur, _ := s.GetTask(ctx, v.ID); cur.Title != "Fix the bug" {
		t.Fatalf("rejected patch partly applied: %+v", cur.Task)
	}

	_, err = s.UpdateTask(ctx, v.ID+1, TaskPatch{})
	wantKind(t, err, ErrNotFound)
}

func TestStore_AssignTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	g := mustGroup(t, s, "Eng")
	v := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID, AssigneeID: &alice.ID})

	got, err := s.AssignTask(ctx, v.ID, &bob.ID)
	if err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if *got.AssigneeID != bob.ID || *got.AssigneeName != "bob" {
		t.Fatalf("unexpected assignee: %+v", got)
	}

	got, err = s.AssignTask(ctx, v.ID, nil)
	if err != nil {
		t.Fatalf("AssignTask(nil): %v", err)
	}
	if got.AssigneeID != nil || got.AssigneeName != nil {
		t.Fatalf("expected unassigned: %+v", got)
	}

	_, err = s.AssignTask(ctx, v.ID, ptr(int64(999)))
	wantKind(t, err, ErrForeignKey)
}

func TestStore_DeleteTask_RemovesComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	v := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID})
	other := mustTask(t, s, NewTask{Title: "Other", GroupID: g.ID})
	mustComment(t, s, v.ID, alice.ID, "one")
	mustComment(t, s, v.ID, alice.ID, "two")
	mustComment(t, s, other.ID, alice.ID, "three")

	if err := s.DeleteTask(ctx, v.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if n := countRows(t, s, `select count(*) from comments where task_id=$1`, v.ID); n != 0 {
		t.Fatalf("comments left: %d", n)
	}
	if n := countRows(t, s, `select count(*) from comments`); n != 1 {
		t.Fatalf("expected other task's comment to survive, %d left", n)
	}
	wantKind(t, s.DeleteTask(ctx, v.ID), ErrNotFound)
}

func TestStore_ListGroupTasks_FiltersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g, other := mustGroup(t, s, "Eng"), mustGroup(t, s, "Ops")
	t1 := mustTask(t, s, NewTask{Title: "one", GroupID: g.ID, Priority: PriorityHigh})
	t2 := mustTask(t, s, NewTask{Title: "two", GroupID: g.ID, Status: StatusCompleted, AssigneeID: &alice.ID})
	t3 := mustTask(t, s, NewTask{Title: "three", GroupID: g.ID, Priority: PriorityHigh, AssigneeID: &alice.ID})
	mustTask(t, s, NewTask{Title: "elsewhere", GroupID: other.ID, Priority: PriorityHigh})

	high, completed := PriorityHigh, StatusCompleted
	cases := []struct {
		name string
		f    TaskFilter
		want []int64
	}{
		{"all", TaskFilter{}, []int64{t3.ID, t2.ID, t1.ID}},
		{"priority", TaskFilter{Priority: &high}, []int64{t3.ID, t1.ID}},
		{"status", TaskFilter{Status: &completed}, []int64{t2.ID}},
		{"assignee", TaskFilter{AssigneeID: &alice.ID}, []int64{t3.ID, t2.ID}},
		{"combined", TaskFilter{Priority: &high, AssigneeID: &alice.ID}, []int64{t3.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListGroupTasks(ctx, g.ID, tc.f)
			if err != nil {
				t.Fatalf("ListGroupTasks: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tc.want))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Fatalf("position %d: got task %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}

	bogus := TaskStatus("done")
	_, err := s.ListGroupTasks(ctx, g.ID, TaskFilter{Status: &bogus})
	wantKind(t, err, ErrInvalidEnum)
}
