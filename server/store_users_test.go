package main

import (
	"context"
	"testing"
)

func TestStore_CreateUser_DefaultsRoleAndHashesPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "alice")
	if u.ID == 0 || u.Role != RoleMember {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !u.CreatedAt.Equal(u.UpdatedAt) {
		t.Fatalf("created_at %v != updated_at %v", u.CreatedAt, u.UpdatedAt)
	}

	c, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if c.PasswordHash == "secret-alice" || !VerifyPassword("secret-alice", c.PasswordHash) {
		t.Fatalf("password not stored as a bcrypt hash: %q", c.PasswordHash)
	}
}

func TestStore_CreateUser_DuplicateEmailCreatesNoRow(t *testing.T) {
	s := newTestStore(t)
	mustUser(t, s, "alice")

	_, err := s.CreateUser(context.Background(), NewUser{Username: "alice2", Email: "alice@example.com", Password: "secret"})
	wantKind(t, err, ErrDuplicateKey)
	if n := countRows(t, s, `select count(*) from users`); n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestStore_CreateUser_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	mustUser(t, s, "alice")

	_, err := s.CreateUser(context.Background(), NewUser{Username: "alice", Email: "other@example.com", Password: "secret"})
	wantKind(t, err, ErrDuplicateKey)
}

func TestStore_CreateUser_RejectsUnknownRole(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateUser(context.Background(), NewUser{Username: "root", Email: "root@example.com", Password: "secret", Role: "root"})
	wantKind(t, err, ErrInvalidEnum)
	if n := countRows(t, s, `select count(*) from users`); n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}
}

func TestStore_RoleCheckConstraintClassified(t *testing.T) {
	s := newTestStore(t)

	_, err := s.db.ExecContext(context.Background(),
		`insert into users(username, email, password, role) values('x', 'x@example.com', 'h', 'root')`)
	if err == nil {
		t.Fatalf("expected check constraint failure")
	}
	wantKind(t, s.fail("raw insert", err), ErrInvalidEnum)
}

func TestStore_UpdateUser_EmptyPatchOnlyTouchesUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	before := mustUser(t, s, "alice")

	after, err := s.UpdateUser(context.Background(), before.ID, UserPatch{})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updated_at not refreshed: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if after.Username != before.Username || after.Email != before.Email || after.Role != before.Role ||
		!after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("fields changed: %+v -> %+v", before, after)
	}
}

func TestStore_UpdateUser_PasswordAndRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "alice")

	admin := RoleAdmin
	got, err := s.UpdateUser(ctx, u.ID, UserPatch{Password: ptr("new-secret"), Role: &admin})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Role != RoleAdmin {
		t.Fatalf("role = %q", got.Role)
	}
	if _, err := s.Authenticate(ctx, "alice@example.com", "secret-alice"); err == nil {
		t.Fatalf("old password still accepted")
	}
	if _, err := s.Authenticate(ctx, "alice@example.com", "new-secret"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	bogus := Role("owner")
	_, err = s.UpdateUser(ctx, u.ID, UserPatch{Role: &bogus})
	wantKind(t, err, ErrInvalidEnum)

	_, err = s.UpdateUser(ctx, u.ID+100, UserPatch{Username: ptr("ghost")})
	wantKind(t, err, ErrNotFound)
}

func TestStore_Authenticate_RejectsBadCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustUser(t, s, "alice")

	_, err := s.Authenticate(ctx, "alice@example.com", "wrong")
	wantKind(t, err, ErrNotFound)
	_, err = s.Authenticate(ctx, "nobody@example.com", "secret-alice")
	wantKind(t, err, ErrNotFound)
}

func TestStore_ListUsers_OrderedByID(t *testing.T) {
	s := newTestStore(t)
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", users)
	}

	a, b := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	users, err = s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].ID != a.ID || users[1].ID != b.ID {
		t.Fatalf("unexpected order: %+v", users)
	}
}

func TestStore_DeleteUser_UnassignsTasksAndDropsMemberships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	if _, err := s.AddMember(ctx, g.ID, alice.ID, RoleAdmin); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	task := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID, AssigneeID: &alice.ID})

	if err := s.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.AssigneeID != nil || got.AssigneeName != nil {
		t.Fatalf("task still assigned: %+v", got)
	}
	if !got.UpdatedAt.After(task.UpdatedAt) {
		t.Fatalf("unassignment did not refresh updated_at")
	}
	if n := countRows(t, s, `select count(*) from group_members where user_id=$1`, alice.ID); n != 0 {
		t.Fatalf("expected memberships gone, got %d", n)
	}
	_, err = s.GetUser(ctx, alice.ID)
	wantKind(t, err, ErrNotFound)
}

func TestStore_DeleteUser_RefusedWhileAuthoringComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	task := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID, AssigneeID: &alice.ID})
	mustComment(t, s, task.ID, alice.ID, "on it")

	err := s.DeleteUser(ctx, alice.ID)
	wantKind(t, err, ErrForeignKey)

	if _, err := s.GetUser(ctx, alice.ID); err != nil {
		t.Fatalf("user should survive: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.AssigneeID == nil || *got.AssigneeID != alice.ID {
		t.Fatalf("unassignment was not rolled back: %+v", got)
	}
}

func TestStore_RestrictedDeleteClassifiedAsForeignKey(t *testing.T) {
	s := newTestStore(t)
	alice := mustUser(t, s, "alice")
	g := mustGroup(t, s, "Eng")
	task := mustTask(t, s, NewTask{Title: "Fix bug", GroupID: g.ID})
	mustComment(t, s, task.ID, alice.ID, "on it")

	_, err := s.db.ExecContext(context.Background(), `delete from users where id=$1`, alice.ID)
	if err == nil {
		t.Fatalf("expected restrict to refuse the delete")
	}
	wantKind(t, s.fail("raw delete", err), ErrForeignKey)
}

func TestStore_DeleteUser_Missing(t *testing.T) {
	s := newTestStore(t)
	wantKind(t, s.DeleteUser(context.Background(), 42), ErrNotFound)
}
