package main

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxCommentLen = 1000

func validateContent(s string) string {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n == 0 || n > maxCommentLen {
		return "content must be between 1 and 1000 characters"
	}
	return ""
}

// publishComment announces a comment change on the group owning taskID.
func (a *api) publishComment(r *http.Request, typ string, taskID int64, payload any) {
	t, err := a.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		a.log.Warn("comment event", "err", err, "task_id", taskID)
		return
	}
	a.bus.Publish(Event{Type: typ, Entity: "comment", GroupID: t.GroupID, TaskID: &taskID, Payload: payload})
}

// POST /api/comments {task_id, user_id, content}
func (a *api) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID  int64  `json:"task_id"`
		UserID  int64  `json:"user_id"`
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	errs := collectErrs(validateContent(req.Content))
	if req.TaskID == 0 {
		errs = append(errs, "task_id is required")
	}
	if req.UserID == 0 {
		errs = append(errs, "user_id is required")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	c, err := a.comments.CreateComment(r.Context(), NewComment{
		TaskID:  req.TaskID,
		UserID:  req.UserID,
		Content: strings.TrimSpace(req.Content),
	})
	if err != nil {
		a.writeStoreError(w, "create comment", err, "")
		return
	}
	writeJSON(w, 201, c)
	a.publishComment(r, "comment.created", c.TaskID, c)
}

func (a *api) handleGetComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	c, err := a.comments.GetComment(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "get comment", err, "comment not found")
		return
	}
	writeJSON(w, 200, c)
}

// PUT /api/comments/{id} {content}
func (a *api) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if errs := collectErrs(validateContent(req.Content)); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	c, err := a.comments.UpdateComment(r.Context(), id, strings.TrimSpace(req.Content))
	if err != nil {
		a.writeStoreError(w, "update comment", err, "comment not found")
		return
	}
	writeJSON(w, 200, c)
	a.publishComment(r, "comment.updated", c.TaskID, c)
}

func (a *api) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	c, err := a.comments.GetComment(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "delete comment", err, "comment not found")
		return
	}
	if err := a.comments.DeleteComment(r.Context(), id); err != nil {
		a.writeStoreError(w, "delete comment", err, "comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
	a.publishComment(r, "comment.deleted", c.TaskID, map[string]int64{"id": id})
}

func (a *api) handleTaskComments(w http.ResponseWriter, r *http.Request) {
	tid, err := pathID(r, "taskId")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	comments, err := a.comments.ListTaskComments(r.Context(), tid)
	if err != nil {
		a.writeStoreError(w, "list task comments", err, "")
		return
	}
	writeJSON(w, 200, comments)
}

func (a *api) handleUserComments(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "userId")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	comments, err := a.comments.ListUserComments(r.Context(), uid)
	if err != nil {
		a.writeStoreError(w, "list user comments", err, "")
		return
	}
	writeJSON(w, 200, comments)
}
