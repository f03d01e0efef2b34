package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// taskViewSelect is the single projection behind every TaskView: the task
// row left-joined with its assignee's display fields.
const taskViewSelect = `select t.id, t.title, t.description, t.status, t.priority, t.group_id,
	t.assignee_id, t.due_date, t.created_at, t.updated_at, u.username, u.email
	from tasks t left join users u on u.id = t.assignee_id`

func scanTaskView(r rowScanner) (TaskView, error) {
	var v TaskView
	err := r.Scan(&v.ID, &v.Title, &v.Description, &v.Status, &v.Priority, &v.GroupID,
		&v.AssigneeID, &v.DueDate, &v.CreatedAt, &v.UpdatedAt, &v.AssigneeName, &v.AssigneeEmail)
	return v, err
}

func (s *Store) getTaskView(ctx context.Context, q queryer, id int64) (TaskView, error) {
	v, err := scanTaskView(q.QueryRowContext(ctx, taskViewSelect+` where t.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TaskView{}, notFound("", "task", id)
	}
	return v, err
}

func (s *Store) CreateTask(ctx context.Context, nt NewTask) (TaskView, error) {
	const op = "create task"
	nt.Status = statusOrDefault(nt.Status)
	nt.Priority = priorityOrDefault(nt.Priority)
	if err := nt.Status.Validate(); err != nil {
		return TaskView{}, s.fail(op, err)
	}
	if err := nt.Priority.Validate(); err != nil {
		return TaskView{}, s.fail(op, err)
	}

	var v TaskView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`insert into tasks(title, description, status, priority, group_id, assignee_id, due_date, created_at, updated_at)
			 values($1,$2,$3,$4,$5,$6,$7,$8,$8) returning id`,
			nt.Title, nt.Description, string(nt.Status), string(nt.Priority), nt.GroupID, nt.AssigneeID, nt.DueDate, s.now()).
			Scan(&id)
		if err != nil {
			return err
		}
		v, err = s.getTaskView(ctx, tx, id)
		return err
	})
	err = s.fail(op, err)
	if errors.Is(err, ErrForeignKey) {
		return TaskView{}, storeErr(op, ErrForeignKey, "group %d or assignee does not exist", nt.GroupID)
	}
	if err != nil {
		return TaskView{}, err
	}
	return v, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (TaskView, error) {
	v, err := s.getTaskView(ctx, s.db, id)
	return v, s.fail("get task", err)
}

// UpdateTask applies the supplied fields only. Enumerations are validated
// before anything is written.
func (s *Store) UpdateTask(ctx context.Context, id int64, p TaskPatch) (TaskView, error) {
	return s.updateTask(ctx, "update task", id, p)
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status TaskStatus) (TaskView, error) {
	return s.updateTask(ctx, "update task status", id, TaskPatch{Status: &status})
}

// AssignTask sets the assignee; a nil userID unassigns the task.
func (s *Store) AssignTask(ctx context.Context, id int64, userID *int64) (TaskView, error) {
	return s.updateTask(ctx, "assign task", id, TaskPatch{AssigneeID: Nullable[int64]{Set: true, Value: userID}})
}

func (s *Store) updateTask(ctx context.Context, op string, id int64, p TaskPatch) (TaskView, error) {
	var l setList
	if p.Title != nil {
		l.add("title", *p.Title)
	}
	if p.Description.Set {
		l.add("description", p.Description.Value)
	}
	if p.Status != nil {
		if err := p.Status.Validate(); err != nil {
			return TaskView{}, s.fail(op, err)
		}
		l.add("status", string(*p.Status))
	}
	if p.Priority != nil {
		if err := p.Priority.Validate(); err != nil {
			return TaskView{}, s.fail(op, err)
		}
		l.add("priority", string(*p.Priority))
	}
	if p.AssigneeID.Set {
		l.add("assignee_id", p.AssigneeID.Value)
	}
	if p.DueDate.Set {
		l.add("due_date", p.DueDate.Value)
	}

	var v TaskView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := s.update(ctx, tx, "tasks", id, l)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "task", id)
		}
		v, err = s.getTaskView(ctx, tx, id)
		return err
	})
	err = s.fail(op, err)
	if errors.Is(err, ErrForeignKey) && p.AssigneeID.Value != nil {
		return TaskView{}, storeErr(op, ErrForeignKey, "assignee %d does not exist", *p.AssigneeID.Value)
	}
	if err != nil {
		return TaskView{}, err
	}
	return v, nil
}

// DeleteTask removes the task and its comments in one transaction.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	const op = "delete task"
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `delete from comments where task_id=$1`, id); err != nil {
			return err
		}
		n, err := deleteByID(ctx, tx, "tasks", id)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "task", id)
		}
		return nil
	})
	return s.fail(op, err)
}

// ListGroupTasks lists a group's tasks newest first, optionally narrowed by
// status, priority or assignee.
func (s *Store) ListGroupTasks(ctx context.Context, groupID int64, f TaskFilter) ([]TaskView, error) {
	const op = "list group tasks"
	where := []string{"t.group_id=$1"}
	args := []any{groupID}
	if f.Status != nil {
		if err := f.Status.Validate(); err != nil {
			return nil, s.fail(op, err)
		}
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if f.Priority != nil {
		if err := f.Priority.Validate(); err != nil {
			return nil, s.fail(op, err)
		}
		args = append(args, string(*f.Priority))
		where = append(where, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if f.AssigneeID != nil {
		args = append(args, *f.AssigneeID)
		where = append(where, fmt.Sprintf("t.assignee_id=$%d", len(args)))
	}
	rows, err := s.db.QueryContext(ctx,
		taskViewSelect+` where `+strings.Join(where, " and ")+` order by t.created_at desc, t.id desc`, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	tasks, err := collect(rows, scanTaskView)
	return tasks, s.fail(op, err)
}
