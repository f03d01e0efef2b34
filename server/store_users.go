package main

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, username, email, role, created_at, updated_at`

func scanUser(r rowScanner) (User, error) {
	var u User
	err := r.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &StoreError{Kind: ErrInvalidInput, Detail: "password too long"}
	}
	return string(hash), err
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// The comparison is constant-time; a malformed hash is simply a mismatch.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func (s *Store) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	const op = "create user"
	nu.Role = roleOrDefault(nu.Role)
	if err := nu.Role.Validate(); err != nil {
		return User{}, s.fail(op, err)
	}
	hash, err := s.hashPassword(nu.Password)
	if err != nil {
		return User{}, s.fail(op, err)
	}
	var u User
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`insert into users(username, email, password, role, created_at, updated_at)
			 values($1,$2,$3,$4,$5,$5) returning id`,
			nu.Username, nu.Email, hash, string(nu.Role), s.now()).Scan(&id)
		if err != nil {
			return err
		}
		u, err = s.getUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return User{}, s.fail(op, err)
	}
	return u, nil
}

func (s *Store) getUser(ctx context.Context, q queryer, id int64) (User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, notFound("", "user", id)
	}
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := s.getUser(ctx, s.db, id)
	return u, s.fail("get user", err)
}

// GetUserByEmail is the only accessor that returns the password hash.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (UserCredentials, error) {
	var c UserCredentials
	err := s.db.QueryRowContext(ctx, `select `+userColumns+`, password from users where email=$1`, email).
		Scan(&c.ID, &c.Username, &c.Email, &c.Role, &c.CreatedAt, &c.UpdatedAt, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return UserCredentials{}, storeErr("get user by email", ErrNotFound, "email %q", email)
	}
	return c, s.fail("get user by email", err)
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by id`)
	if err != nil {
		return nil, s.fail("list users", err)
	}
	users, err := collect(rows, scanUser)
	return users, s.fail("list users", err)
}

// Authenticate checks an email/password pair. Both an unknown email and a
// wrong password come back as ErrNotFound.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	c, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if !VerifyPassword(password, c.PasswordHash) {
		return User{}, storeErr("authenticate", ErrNotFound, "bad credentials")
	}
	return c.User, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, p UserPatch) (User, error) {
	const op = "update user"
	var l setList
	if p.Username != nil {
		l.add("username", *p.Username)
	}
	if p.Email != nil {
		l.add("email", *p.Email)
	}
	if p.Password != nil {
		hash, err := s.hashPassword(*p.Password)
		if err != nil {
			return User{}, s.fail(op, err)
		}
		l.add("password", hash)
	}
	if p.Role != nil {
		if err := p.Role.Validate(); err != nil {
			return User{}, s.fail(op, err)
		}
		l.add("role", string(*p.Role))
	}

	var u User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := s.update(ctx, tx, "users", id, l)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "user", id)
		}
		u, err = s.getUser(ctx, tx, id)
		return err
	})
	if err != nil {
		return User{}, s.fail(op, err)
	}
	return u, nil
}

// DeleteUser removes a user. Memberships go with it, tasks assigned to the
// user become unassigned, and the delete is refused while the user still
// authors comments.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	const op = "delete user"
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`update tasks set assignee_id=null, updated_at=$1 where assignee_id=$2`, s.now(), id); err != nil {
			return err
		}
		n, err := deleteByID(ctx, tx, "users", id)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "user", id)
		}
		return nil
	})
	err = s.fail(op, err)
	if errors.Is(err, ErrForeignKey) {
		return storeErr(op, ErrForeignKey, "user %d still authors comments", id)
	}
	return err
}
