package main

import (
	"context"
	"database/sql"
	"errors"
)

// commentViewSelect joins every comment with its author's username.
const commentViewSelect = `select c.id, c.task_id, c.user_id, u.username, c.content, c.created_at, c.updated_at
	from comments c join users u on u.id = c.user_id`

func scanCommentView(r rowScanner) (CommentView, error) {
	var v CommentView
	err := r.Scan(&v.ID, &v.TaskID, &v.UserID, &v.UserName, &v.Content, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func scanUserComment(r rowScanner) (UserComment, error) {
	var c UserComment
	err := r.Scan(&c.ID, &c.Content, &c.TaskID, &c.TaskTitle, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) getCommentView(ctx context.Context, q queryer, id int64) (CommentView, error) {
	v, err := scanCommentView(q.QueryRowContext(ctx, commentViewSelect+` where c.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CommentView{}, notFound("", "comment", id)
	}
	return v, err
}

func (s *Store) CreateComment(ctx context.Context, nc NewComment) (CommentView, error) {
	const op = "create comment"
	var v CommentView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`insert into comments(task_id, user_id, content, created_at, updated_at) values($1,$2,$3,$4,$4) returning id`,
			nc.TaskID, nc.UserID, nc.Content, s.now()).Scan(&id)
		if err != nil {
			return err
		}
		v, err = s.getCommentView(ctx, tx, id)
		return err
	})
	err = s.fail(op, err)
	if errors.Is(err, ErrForeignKey) {
		return CommentView{}, storeErr(op, ErrForeignKey, "task %d or user %d does not exist", nc.TaskID, nc.UserID)
	}
	if err != nil {
		return CommentView{}, err
	}
	return v, nil
}

func (s *Store) GetComment(ctx context.Context, id int64) (CommentView, error) {
	v, err := s.getCommentView(ctx, s.db, id)
	return v, s.fail("get comment", err)
}

// UpdateComment replaces the content wholesale.
func (s *Store) UpdateComment(ctx context.Context, id int64, content string) (CommentView, error) {
	const op = "update comment"
	var l setList
	l.add("content", content)
	var v CommentView
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := s.update(ctx, tx, "comments", id, l)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "comment", id)
		}
		v, err = s.getCommentView(ctx, tx, id)
		return err
	})
	if err != nil {
		return CommentView{}, s.fail(op, err)
	}
	return v, nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	n, err := deleteByID(ctx, s.db, "comments", id)
	if err != nil {
		return s.fail("delete comment", err)
	}
	if n == 0 {
		return notFound("delete comment", "comment", id)
	}
	return nil
}

func (s *Store) ListTaskComments(ctx context.Context, taskID int64) ([]CommentView, error) {
	rows, err := s.db.QueryContext(ctx,
		commentViewSelect+` where c.task_id=$1 order by c.created_at desc, c.id desc`, taskID)
	if err != nil {
		return nil, s.fail("list task comments", err)
	}
	comments, err := collect(rows, scanCommentView)
	return comments, s.fail("list task comments", err)
}

// ListUserComments lists the user's comments newest first, each with its task's title.
func (s *Store) ListUserComments(ctx context.Context, userID int64) ([]UserComment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select c.id, c.content, t.id, t.title, c.created_at, c.updated_at
		 from comments c join tasks t on t.id = c.task_id
		 where c.user_id=$1
		 order by c.created_at desc, c.id desc`, userID)
	if err != nil {
		return nil, s.fail("list user comments", err)
	}
	comments, err := collect(rows, scanUserComment)
	return comments, s.fail("list user comments", err)
}
