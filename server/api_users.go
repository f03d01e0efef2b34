package main

import (
	"errors"
	"net/http"
	"strings"
)

func validateUsername(s string) string {
	if len(strings.TrimSpace(s)) < 3 {
		return "username must be at least 3 characters long"
	}
	return ""
}

func validateEmail(s string) string {
	if !strings.Contains(s, "@") {
		return "valid email is required"
	}
	return ""
}

func validatePassword(s string) string {
	if len(s) < 6 {
		return "password must be at least 6 characters long"
	}
	return ""
}

// collectErrs drops empty messages.
func collectErrs(msgs ...string) []string {
	var out []string
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.writeStoreError(w, "list users", err, "")
		return
	}
	writeJSON(w, 200, users)
}

func (a *api) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, err := a.users.GetUser(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "get user", err, "user not found")
		return
	}
	writeJSON(w, 200, u)
}

func (a *api) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     Role   `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if errs := collectErrs(validateUsername(req.Username), validateEmail(req.Email), validatePassword(req.Password)); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	u, err := a.users.CreateUser(r.Context(), NewUser{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		a.writeStoreError(w, "create user", err, "")
		return
	}
	writeJSON(w, 201, u)
}

func (a *api) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var p UserPatch
	if err := readJSON(w, r, &p); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	var errs []string
	if p.Username != nil {
		errs = append(errs, collectErrs(validateUsername(*p.Username))...)
	}
	if p.Email != nil {
		errs = append(errs, collectErrs(validateEmail(*p.Email))...)
	}
	if p.Password != nil {
		errs = append(errs, collectErrs(validatePassword(*p.Password))...)
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}
	if p.Username != nil {
		name := strings.TrimSpace(*p.Username)
		p.Username = &name
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		p.Email = &email
	}
	u, err := a.users.UpdateUser(r.Context(), id, p)
	if err != nil {
		a.writeStoreError(w, "update user", err, "user not found")
		return
	}
	writeJSON(w, 200, u)
}

func (a *api) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if err := a.users.DeleteUser(r.Context(), id); err != nil {
		a.writeStoreError(w, "delete user", err, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/users/login {email, password}
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	u, err := a.users.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, 401, "invalid credentials")
			return
		}
		a.writeStoreError(w, "login", err, "")
		return
	}
	writeJSON(w, 200, u)
}
