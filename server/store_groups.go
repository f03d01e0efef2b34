package main

import (
	"context"
	"database/sql"
	"errors"
)

const (
	groupColumns      = `id, name, description, created_at, updated_at`
	groupColumnsG     = `g.id, g.name, g.description, g.created_at, g.updated_at`
	membershipColumns = `id, group_id, user_id, role, created_at, updated_at`
)

func scanGroup(r rowScanner) (Group, error) {
	var g Group
	err := r.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func scanUserGroup(r rowScanner) (UserGroup, error) {
	var ug UserGroup
	err := r.Scan(&ug.ID, &ug.Name, &ug.Description, &ug.CreatedAt, &ug.UpdatedAt, &ug.UserRole)
	return ug, err
}

func scanGroupMember(r rowScanner) (GroupMember, error) {
	var m GroupMember
	err := r.Scan(&m.UserID, &m.Username, &m.Email, &m.Role, &m.JoinedAt)
	return m, err
}

func scanMembership(r rowScanner) (Membership, error) {
	var m Membership
	err := r.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func getMembership(ctx context.Context, q queryer, id int64) (Membership, error) {
	return scanMembership(q.QueryRowContext(ctx, `select `+membershipColumns+` from group_members where id=$1`, id))
}

// CreateGroup inserts the group and, when a creator is named, the creator's
// admin membership in the same transaction.
func (s *Store) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	const op = "create group"
	var g Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		var id int64
		err := tx.QueryRowContext(ctx,
			`insert into groups(name, description, created_at, updated_at) values($1,$2,$3,$3) returning id`,
			ng.Name, ng.Description, now).Scan(&id)
		if err != nil {
			return err
		}
		if ng.CreatorID != nil {
			_, err = tx.ExecContext(ctx,
				`insert into group_members(group_id, user_id, role, created_at, updated_at) values($1,$2,$3,$4,$4)`,
				id, *ng.CreatorID, string(RoleAdmin), now)
			if err != nil {
				return err
			}
		}
		g, err = s.getGroup(ctx, tx, id)
		return err
	})
	err = s.fail(op, err)
	if errors.Is(err, ErrForeignKey) && ng.CreatorID != nil {
		return Group{}, storeErr(op, ErrForeignKey, "creator %d does not exist", *ng.CreatorID)
	}
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `select `+groupColumns+` from groups order by id`)
	if err != nil {
		return nil, s.fail("list groups", err)
	}
	groups, err := collect(rows, scanGroup)
	return groups, s.fail("list groups", err)
}

func (s *Store) getGroup(ctx context.Context, q queryer, id int64) (Group, error) {
	g, err := scanGroup(q.QueryRowContext(ctx, `select `+groupColumns+` from groups where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, notFound("", "group", id)
	}
	return g, err
}

// GetGroup returns the group together with its full member list.
func (s *Store) GetGroup(ctx context.Context, id int64) (GroupDetail, error) {
	const op = "get group"
	g, err := s.getGroup(ctx, s.db, id)
	if err != nil {
		return GroupDetail{}, s.fail(op, err)
	}
	rows, err := s.db.QueryContext(ctx,
		`select u.id, u.username, u.email, gm.role, gm.created_at
		 from group_members gm join users u on u.id = gm.user_id
		 where gm.group_id=$1
		 order by gm.created_at, gm.id`, id)
	if err != nil {
		return GroupDetail{}, s.fail(op, err)
	}
	members, err := collect(rows, scanGroupMember)
	if err != nil {
		return GroupDetail{}, s.fail(op, err)
	}
	return GroupDetail{Group: g, Members: members}, nil
}

func (s *Store) UpdateGroup(ctx context.Context, id int64, p GroupPatch) (Group, error) {
	const op = "update group"
	var l setList
	if p.Name != nil {
		l.add("name", *p.Name)
	}
	if p.Description.Set {
		l.add("description", p.Description.Value)
	}
	var g Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := s.update(ctx, tx, "groups", id, l)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "group", id)
		}
		g, err = s.getGroup(ctx, tx, id)
		return err
	})
	if err != nil {
		return Group{}, s.fail(op, err)
	}
	return g, nil
}

// DeleteGroup removes the group with its tasks, their comments and its
// memberships in one transaction.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	const op = "delete group"
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cascade := []string{
			`delete from comments where task_id in (select id from tasks where group_id=$1)`,
			`delete from tasks where group_id=$1`,
			`delete from group_members where group_id=$1`,
		}
		for _, q := range cascade {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		n, err := deleteByID(ctx, tx, "groups", id)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(op, "group", id)
		}
		return nil
	})
	return s.fail(op, err)
}

func (s *Store) AddMember(ctx context.Context, groupID, userID int64, role Role) (Membership, error) {
	const op = "add member"
	role = roleOrDefault(role)
	if err := role.Validate(); err != nil {
		return Membership{}, s.fail(op, err)
	}
	var m Membership
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`insert into group_members(group_id, user_id, role, created_at, updated_at)
			 values($1,$2,$3,$4,$4) returning id`,
			groupID, userID, string(role), s.now()).Scan(&id)
		if err != nil {
			return err
		}
		m, err = getMembership(ctx, tx, id)
		return err
	})
	err = s.fail(op, err)
	switch {
	case errors.Is(err, ErrDuplicateKey):
		return Membership{}, storeErr(op, ErrDuplicateMembership, "user %d in group %d", userID, groupID)
	case errors.Is(err, ErrForeignKey):
		return Membership{}, storeErr(op, ErrForeignKey, "group %d or user %d does not exist", groupID, userID)
	case err != nil:
		return Membership{}, err
	}
	return m, nil
}

// RemoveMember deletes the (group, user) membership and reports how many
// rows went; zero is not an error here.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from group_members where group_id=$1 and user_id=$2`, groupID, userID)
	if err != nil {
		return 0, s.fail("remove member", err)
	}
	n, err := res.RowsAffected()
	return n, s.fail("remove member", err)
}

func (s *Store) UpdateMemberRole(ctx context.Context, groupID, userID int64, role Role) (Membership, error) {
	const op = "update member role"
	if err := role.Validate(); err != nil {
		return Membership{}, s.fail(op, err)
	}
	var m Membership
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`update group_members set role=$1, updated_at=$2 where group_id=$3 and user_id=$4 returning id`,
			string(role), s.now(), groupID, userID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return storeErr(op, ErrNotFound, "user %d is not in group %d", userID, groupID)
		}
		if err != nil {
			return err
		}
		m, err = getMembership(ctx, tx, id)
		return err
	})
	if err != nil {
		return Membership{}, s.fail(op, err)
	}
	return m, nil
}

// ListUserGroups returns every group the user belongs to with the user's role in it.
func (s *Store) ListUserGroups(ctx context.Context, userID int64) ([]UserGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+groupColumnsG+`, gm.role
		 from groups g join group_members gm on gm.group_id = g.id
		 where gm.user_id=$1
		 order by g.id`, userID)
	if err != nil {
		return nil, s.fail("list user groups", err)
	}
	groups, err := collect(rows, scanUserGroup)
	return groups, s.fail("list user groups", err)
}

// GroupRole returns the user's role in the group, or ErrNotFound if the user
// is not a member.
func (s *Store) GroupRole(ctx context.Context, groupID, userID int64) (Role, error) {
	var role Role
	err := s.db.QueryRowContext(ctx,
		`select role from group_members where group_id=$1 and user_id=$2`, groupID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storeErr("group role", ErrNotFound, "user %d is not in group %d", userID, groupID)
	}
	return role, s.fail("group role", err)
}
