package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type userDirectory interface {
	CreateUser(ctx context.Context, nu NewUser) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id int64, p UserPatch) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	Authenticate(ctx context.Context, email, password string) (User, error)
}

type groupManager interface {
	CreateGroup(ctx context.Context, ng NewGroup) (Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, id int64) (GroupDetail, error)
	UpdateGroup(ctx context.Context, id int64, p GroupPatch) (Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	AddMember(ctx context.Context, groupID, userID int64, role Role) (Membership, error)
	RemoveMember(ctx context.Context, groupID, userID int64) (int64, error)
	UpdateMemberRole(ctx context.Context, groupID, userID int64, role Role) (Membership, error)
	ListUserGroups(ctx context.Context, userID int64) ([]UserGroup, error)
	GroupRole(ctx context.Context, groupID, userID int64) (Role, error)
}

type taskTracker interface {
	CreateTask(ctx context.Context, nt NewTask) (TaskView, error)
	GetTask(ctx context.Context, id int64) (TaskView, error)
	UpdateTask(ctx context.Context, id int64, p TaskPatch) (TaskView, error)
	UpdateTaskStatus(ctx context.Context, id int64, status TaskStatus) (TaskView, error)
	AssignTask(ctx context.Context, id int64, userID *int64) (TaskView, error)
	DeleteTask(ctx context.Context, id int64) error
	ListGroupTasks(ctx context.Context, groupID int64, f TaskFilter) ([]TaskView, error)
}

type commentLedger interface {
	CreateComment(ctx context.Context, nc NewComment) (CommentView, error)
	GetComment(ctx context.Context, id int64) (CommentView, error)
	UpdateComment(ctx context.Context, id int64, content string) (CommentView, error)
	DeleteComment(ctx context.Context, id int64) error
	ListTaskComments(ctx context.Context, taskID int64) ([]CommentView, error)
	ListUserComments(ctx context.Context, userID int64) ([]UserComment, error)
}

type api struct {
	users    userDirectory
	groups   groupManager
	tasks    taskTracker
	comments commentLedger
	ping     func(context.Context) error
	log      *slog.Logger
	bus      *EventBus
	// rate limiting buckets per IP:key
	rlMu sync.Mutex
	rl   map[string]*rateBucket
}

func newAPI(store *Store, log *slog.Logger) *api {
	return &api{
		users:    store,
		groups:   store,
		tasks:    store,
		comments: store,
		ping:     store.Ping,
		log:      log,
		bus:      NewEventBus(),
		rl:       map[string]*rateBucket{},
	}
}

func (a *api) routes(r *mux.Router) {
	r.HandleFunc("/api/health", a.handleHealth).Methods("GET")

	r.HandleFunc("/api/users", a.handleListUsers).Methods("GET")
	r.HandleFunc("/api/users", a.withRateLimit("users", 20, time.Minute, a.handleCreateUser)).Methods("POST")
	r.HandleFunc("/api/users/login", a.withRateLimit("login", 30, time.Minute, a.handleLogin)).Methods("POST")
	r.HandleFunc("/api/users/{id:[0-9]+}", a.handleGetUser).Methods("GET")
	r.HandleFunc("/api/users/{id:[0-9]+}", a.handleUpdateUser).Methods("PUT")
	r.HandleFunc("/api/users/{id:[0-9]+}", a.handleDeleteUser).Methods("DELETE")

	r.HandleFunc("/api/groups", a.handleListGroups).Methods("GET")
	r.HandleFunc("/api/groups", a.handleCreateGroup).Methods("POST")
	r.HandleFunc("/api/groups/user/{userId:[0-9]+}", a.handleUserGroups).Methods("GET")
	r.HandleFunc("/api/groups/{id:[0-9]+}", a.handleGetGroup).Methods("GET")
	r.HandleFunc("/api/groups/{id:[0-9]+}", a.requireGroupAdmin(a.handleUpdateGroup)).Methods("PUT")
	r.HandleFunc("/api/groups/{id:[0-9]+}", a.requireGroupAdmin(a.handleDeleteGroup)).Methods("DELETE")
	r.HandleFunc("/api/groups/{id:[0-9]+}/events", a.handleGroupEvents).Methods("GET")
	r.HandleFunc("/api/groups/{id:[0-9]+}/members", a.requireGroupAdmin(a.handleAddMember)).Methods("POST")
	r.HandleFunc("/api/groups/{id:[0-9]+}/members/{userId:[0-9]+}", a.requireGroupAdmin(a.handleUpdateMemberRole)).Methods("PUT")
	r.HandleFunc("/api/groups/{id:[0-9]+}/members/{userId:[0-9]+}", a.requireGroupAdmin(a.handleRemoveMember)).Methods("DELETE")

	r.HandleFunc("/api/tasks", a.handleCreateTask).Methods("POST")
	r.HandleFunc("/api/tasks/group/{groupId:[0-9]+}", a.handleGroupTasks).Methods("GET")
	r.HandleFunc("/api/tasks/group/{groupId:[0-9]+}/{field:status|priority|assignee}/{value}", a.handleGroupTasks).Methods("GET")
	r.HandleFunc("/api/tasks/{id:[0-9]+}", a.handleGetTask).Methods("GET")
	r.HandleFunc("/api/tasks/{id:[0-9]+}", a.handleUpdateTask).Methods("PUT")
	r.HandleFunc("/api/tasks/{id:[0-9]+}", a.handleDeleteTask).Methods("DELETE")
	r.HandleFunc("/api/tasks/{id:[0-9]+}/status", a.handleUpdateTaskStatus).Methods("PATCH")
	r.HandleFunc("/api/tasks/{id:[0-9]+}/assign", a.handleAssignTask).Methods("PATCH")

	r.HandleFunc("/api/comments", a.handleCreateComment).Methods("POST")
	r.HandleFunc("/api/comments/task/{taskId:[0-9]+}", a.handleTaskComments).Methods("GET")
	r.HandleFunc("/api/comments/user/{userId:[0-9]+}", a.handleUserComments).Methods("GET")
	r.HandleFunc("/api/comments/{id:[0-9]+}", a.handleGetComment).Methods("GET")
	r.HandleFunc("/api/comments/{id:[0-9]+}", a.handleUpdateComment).Methods("PUT")
	r.HandleFunc("/api/comments/{id:[0-9]+}", a.handleDeleteComment).Methods("DELETE")
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

// allow counts a hit against the host's bucket for key. Buckets whose
// window has passed are dropped on the way.
func (a *api) allow(host, key string, max int, window time.Duration) bool {
	now := time.Now()
	rk := host + "|" + key
	a.rlMu.Lock()
	defer a.rlMu.Unlock()
	for k, b := range a.rl {
		if now.After(b.resetAt) {
			delete(a.rl, k)
		}
	}
	b, ok := a.rl[rk]
	if !ok {
		b = &rateBucket{resetAt: now.Add(window)}
		a.rl[rk] = b
	}
	if b.count >= max {
		return false
	}
	b.count++
	return true
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *api) withRateLimit(name string, max int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.allow(clientHost(r), name, max, window) {
			writeError(w, 429, "too many requests")
			return
		}
		next(w, r)
	}
}

// actor resolves the optional X-User-ID header naming the acting user.
// No header means the caller is trusted (authentication lives upstream).
func (a *api) actor(r *http.Request) (*User, error) {
	v := r.Header.Get("X-User-ID")
	if v == "" {
		return nil, nil
	}
	id, err := parseID(v)
	if err != nil {
		return nil, ErrNotFound
	}
	u, err := a.users.GetUser(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *api) writeActorError(w http.ResponseWriter, err error) {
	if !errors.Is(err, ErrNotFound) {
		a.log.Error("resolve actor", "err", err)
	}
	writeError(w, 401, "unknown acting user")
}

// requireGroupAdmin lets the request through when no acting user is named,
// when the actor is a global admin, or when the actor is an admin of the
// group in the {id} path variable.
func (a *api) requireGroupAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, err := a.actor(r)
		if err != nil {
			a.writeActorError(w, err)
			return
		}
		if me == nil || me.Role == RoleAdmin {
			next(w, r)
			return
		}
		gid, err := pathID(r, "id")
		if err != nil {
			writeError(w, 400, "bad id")
			return
		}
		role, err := a.groups.GroupRole(r.Context(), gid, me.ID)
		switch {
		case errors.Is(err, ErrNotFound), err == nil && role != RoleAdmin:
			writeError(w, 403, "forbidden")
			return
		case err != nil:
			a.log.Error("group role", "err", err)
			writeError(w, 500, "internal error")
			return
		}
		next(w, r)
	}
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func pathID(r *http.Request, name string) (int64, error) { return parseID(mux.Vars(r)[name]) }

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func writeValidation(w http.ResponseWriter, errs []string) {
	writeJSON(w, 400, map[string]any{"ok": false, "errors": errs})
}

// writeStoreError maps a store failure onto an HTTP status. Anything that
// is not a classified store error is logged and hidden behind a 500.
func (a *api) writeStoreError(w http.ResponseWriter, op string, err error, notFoundMsg string) {
	detail := err.Error()
	var se *StoreError
	if errors.As(err, &se) && se.Detail != "" {
		detail = se.Detail
	}
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, 404, notFoundMsg)
	case errors.Is(err, ErrDuplicateMembership):
		writeError(w, 409, "user is already a member of this group")
	case errors.Is(err, ErrDuplicateKey):
		writeError(w, 409, "already exists: "+detail)
	case errors.Is(err, ErrForeignKey):
		writeError(w, 409, detail)
	case errors.Is(err, ErrInvalidEnum), errors.Is(err, ErrInvalidInput):
		writeError(w, 400, detail)
	default:
		a.log.Error(op, "err", err)
		writeError(w, 500, "internal error")
	}
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status,
			"dur_ms", time.Since(start).Milliseconds(), "request_id", reqID)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Implement http.Flusher if underlying writer supports it (needed for SSE)
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
