package main

import (
	"net/http"
	"strings"
)

func validateGroupName(s string) string {
	if len(strings.TrimSpace(s)) < 3 {
		return "group name must be at least 3 characters long"
	}
	return ""
}

func (a *api) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := a.groups.ListGroups(r.Context())
	if err != nil {
		a.writeStoreError(w, "list groups", err, "")
		return
	}
	writeJSON(w, 200, groups)
}

func (a *api) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	g, err := a.groups.GetGroup(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "get group", err, "group not found")
		return
	}
	writeJSON(w, 200, g)
}

// POST /api/groups {name, description}
func (a *api) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if errs := collectErrs(validateGroupName(req.Name)); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	ng := NewGroup{Name: strings.TrimSpace(req.Name), Description: req.Description}
	me, err := a.actor(r)
	if err != nil {
		a.writeActorError(w, err)
		return
	}
	if me != nil {
		ng.CreatorID = &me.ID
	}
	g, err := a.groups.CreateGroup(r.Context(), ng)
	if err != nil {
		a.writeStoreError(w, "create group", err, "")
		return
	}
	writeJSON(w, 201, g)
}

func (a *api) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var p GroupPatch
	if err := readJSON(w, r, &p); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if p.Name != nil {
		if errs := collectErrs(validateGroupName(*p.Name)); len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	g, err := a.groups.UpdateGroup(r.Context(), id, p)
	if err != nil {
		a.writeStoreError(w, "update group", err, "group not found")
		return
	}
	writeJSON(w, 200, g)
	a.bus.Publish(Event{Type: "group.updated", Entity: "group", GroupID: g.ID, Payload: g})
}

func (a *api) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if err := a.groups.DeleteGroup(r.Context(), id); err != nil {
		a.writeStoreError(w, "delete group", err, "group not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
	a.bus.Publish(Event{Type: "group.deleted", Entity: "group", GroupID: id})
}

// POST /api/groups/{id}/members {user_id, role}
func (a *api) handleAddMember(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		UserID int64 `json:"user_id"`
		Role   Role  `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil || req.UserID == 0 {
		writeError(w, 400, "user_id is required")
		return
	}
	m, err := a.groups.AddMember(r.Context(), gid, req.UserID, req.Role)
	if err != nil {
		a.writeStoreError(w, "add member", err, "")
		return
	}
	writeJSON(w, 201, m)
	a.bus.Publish(Event{Type: "member.added", Entity: "member", GroupID: gid, Payload: m})
}

func (a *api) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	uid, err := pathID(r, "userId")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	n, err := a.groups.RemoveMember(r.Context(), gid, uid)
	if err != nil {
		a.writeStoreError(w, "remove member", err, "")
		return
	}
	if n == 0 {
		writeError(w, 404, "member not found in group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
	a.bus.Publish(Event{Type: "member.removed", Entity: "member", GroupID: gid, Payload: map[string]int64{"user_id": uid}})
}

// PUT /api/groups/{id}/members/{userId} {role}
func (a *api) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	uid, err := pathID(r, "userId")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Role Role `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil || req.Role.Validate() != nil {
		writeError(w, 400, "valid role (admin or member) is required")
		return
	}
	m, err := a.groups.UpdateMemberRole(r.Context(), gid, uid, req.Role)
	if err != nil {
		a.writeStoreError(w, "update member role", err, "member not found in group")
		return
	}
	writeJSON(w, 200, m)
	a.bus.Publish(Event{Type: "member.updated", Entity: "member", GroupID: gid, Payload: m})
}

func (a *api) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "userId")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	groups, err := a.groups.ListUserGroups(r.Context(), uid)
	if err != nil {
		a.writeStoreError(w, "list user groups", err, "")
		return
	}
	writeJSON(w, 200, groups)
}

// GET /api/groups/{id}/events streams the group's mutations as SSE.
func (a *api) handleGroupEvents(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if _, err := a.groups.GetGroup(r.Context(), gid); err != nil {
		a.writeStoreError(w, "group events", err, "group not found")
		return
	}
	a.bus.ServeSSE(w, r, gid)
}
