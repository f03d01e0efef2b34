package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

func validateTitle(s string) string {
	if len(strings.TrimSpace(s)) < 3 {
		return "title must be at least 3 characters long"
	}
	return ""
}

func validStatus(s TaskStatus) string {
	if s != "" && s.Validate() != nil {
		return "status must be one of todo, in_progress, completed"
	}
	return ""
}

func validPriority(p TaskPriority) string {
	if p != "" && p.Validate() != nil {
		return "priority must be one of high, medium, low"
	}
	return ""
}

func (a *api) publishTask(typ string, groupID, taskID int64, payload any) {
	a.bus.Publish(Event{Type: typ, Entity: "task", GroupID: groupID, TaskID: &taskID, Payload: payload})
}

// POST /api/tasks {title, description, status, priority, group_id, assignee_id, due_date}
func (a *api) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string       `json:"title"`
		Description *string      `json:"description"`
		Status      TaskStatus   `json:"status"`
		Priority    TaskPriority `json:"priority"`
		GroupID     int64        `json:"group_id"`
		AssigneeID  *int64       `json:"assignee_id"`
		DueDate     *Date        `json:"due_date"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	errs := collectErrs(validateTitle(req.Title), validStatus(req.Status), validPriority(req.Priority))
	if req.GroupID == 0 {
		errs = append(errs, "group_id is required")
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	t, err := a.tasks.CreateTask(r.Context(), NewTask{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		GroupID:     req.GroupID,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		a.writeStoreError(w, "create task", err, "")
		return
	}
	writeJSON(w, 201, t)
	a.publishTask("task.created", t.GroupID, t.ID, t)
}

// handleGroupTasks serves both /api/tasks/group/{groupId} with optional
// status, priority and assignee_id query parameters and the
// /{field}/{value} shorthand routes.
func (a *api) handleGroupTasks(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "groupId")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	q := r.URL.Query()
	status, priority, assignee := q.Get("status"), q.Get("priority"), q.Get("assignee_id")
	switch v := mux.Vars(r); v["field"] {
	case "status":
		status = v["value"]
	case "priority":
		priority = v["value"]
	case "assignee":
		assignee = v["value"]
	}

	var f TaskFilter
	if status != "" {
		s := TaskStatus(status)
		f.Status = &s
	}
	if priority != "" {
		p := TaskPriority(priority)
		f.Priority = &p
	}
	if assignee != "" {
		id, err := parseID(assignee)
		if err != nil {
			writeError(w, 400, "bad assignee id")
			return
		}
		f.AssigneeID = &id
	}
	tasks, err := a.tasks.ListGroupTasks(r.Context(), gid, f)
	if err != nil {
		a.writeStoreError(w, "list group tasks", err, "")
		return
	}
	writeJSON(w, 200, tasks)
}

func (a *api) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	t, err := a.tasks.GetTask(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "get task", err, "task not found")
		return
	}
	writeJSON(w, 200, t)
}

func (a *api) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var p TaskPatch
	if err := readJSON(w, r, &p); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	var errs []string
	if p.Title != nil {
		errs = append(errs, collectErrs(validateTitle(*p.Title))...)
		title := strings.TrimSpace(*p.Title)
		p.Title = &title
	}
	if p.Status != nil {
		errs = append(errs, collectErrs(validStatus(*p.Status))...)
	}
	if p.Priority != nil {
		errs = append(errs, collectErrs(validPriority(*p.Priority))...)
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	t, err := a.tasks.UpdateTask(r.Context(), id, p)
	if err != nil {
		a.writeStoreError(w, "update task", err, "task not found")
		return
	}
	writeJSON(w, 200, t)
	a.publishTask("task.updated", t.GroupID, t.ID, t)
}

// PATCH /api/tasks/{id}/status {status}
func (a *api) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Status TaskStatus `json:"status"`
	}
	if err := readJSON(w, r, &req); err != nil || req.Status == "" {
		writeError(w, 400, "status is required")
		return
	}
	t, err := a.tasks.UpdateTaskStatus(r.Context(), id, req.Status)
	if err != nil {
		a.writeStoreError(w, "update task status", err, "task not found")
		return
	}
	writeJSON(w, 200, t)
	a.publishTask("task.updated", t.GroupID, t.ID, t)
}

// PATCH /api/tasks/{id}/assign {user_id}; a null user_id unassigns.
func (a *api) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		UserID *int64 `json:"user_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	t, err := a.tasks.AssignTask(r.Context(), id, req.UserID)
	if err != nil {
		a.writeStoreError(w, "assign task", err, "task not found")
		return
	}
	writeJSON(w, 200, t)
	a.publishTask("task.assigned", t.GroupID, t.ID, t)
}

func (a *api) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	// the group is needed for the event after the row is gone
	t, err := a.tasks.GetTask(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "delete task", err, "task not found")
		return
	}
	if err := a.tasks.DeleteTask(r.Context(), id); err != nil {
		a.writeStoreError(w, "delete task", err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
	a.publishTask("task.deleted", t.GroupID, id, nil)
}
