package main

// Constraint names are shared between dialects; classifyCheck maps them to error kinds.
const postgresSchema = `
create table if not exists users(
    id bigserial primary key,
    username text not null,
    email text not null,
    password text not null,
    role text not null default 'member',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    constraint users_username_key unique (username),
    constraint users_email_key unique (email),
    constraint users_role_check check (role in ('admin', 'member'))
);

create table if not exists groups(
    id bigserial primary key,
    name text not null,
    description text,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists group_members(
    id bigserial primary key,
    group_id bigint not null references groups(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    role text not null default 'member',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    constraint group_members_group_user_key unique (group_id, user_id),
    constraint group_members_role_check check (role in ('admin', 'member'))
);
create index if not exists group_members_user_idx on group_members(user_id);

create table if not exists tasks(
    id bigserial primary key,
    title text not null,
    description text,
    status text not null default 'todo',
    priority text not null default 'medium',
    group_id bigint not null references groups(id) on delete cascade,
    assignee_id bigint references users(id) on delete set null,
    due_date date,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    constraint tasks_status_check check (status in ('todo', 'in_progress', 'completed')),
    constraint tasks_priority_check check (priority in ('high', 'medium', 'low'))
);
create index if not exists tasks_group_idx on tasks(group_id, created_at desc);
create index if not exists tasks_assignee_idx on tasks(assignee_id);

create table if not exists comments(
    id bigserial primary key,
    task_id bigint not null references tasks(id) on delete cascade,
    user_id bigint not null references users(id) on delete restrict,
    content text not null,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    constraint comments_content_check check (length(content) > 0)
);
create index if not exists comments_task_idx on comments(task_id, created_at desc);
create index if not exists comments_user_idx on comments(user_id);
`

const sqliteSchema = `
create table if not exists users(
    id integer primary key autoincrement,
    username text not null,
    email text not null,
    password text not null,
    role text not null default 'member',
    created_at timestamp not null default current_timestamp,
    updated_at timestamp not null default current_timestamp,
    constraint users_username_key unique (username),
    constraint users_email_key unique (email),
    constraint users_role_check check (role in ('admin', 'member'))
);

create table if not exists groups(
    id integer primary key autoincrement,
    name text not null,
    description text,
    created_at timestamp not null default current_timestamp,
    updated_at timestamp not null default current_timestamp
);

create table if not exists group_members(
    id integer primary key autoincrement,
    group_id integer not null references groups(id) on delete cascade,
    user_id integer not null references users(id) on delete cascade,
    role text not null default 'member',
    created_at timestamp not null default current_timestamp,
    updated_at timestamp not null default current_timestamp,
    constraint group_members_group_user_key unique (group_id, user_id),
    constraint group_members_role_check check (role in ('admin', 'member'))
);
create index if not exists group_members_user_idx on group_members(user_id);

create table if not exists tasks(
    id integer primary key autoincrement,
    title text not null,
    description text,
    status text not null default 'todo',
    priority text not null default 'medium',
    group_id integer not null references groups(id) on delete cascade,
    assignee_id integer references users(id) on delete set null,
    due_date date,
    created_at timestamp not null default current_timestamp,
    updated_at timestamp not null default current_timestamp,
    constraint tasks_status_check check (status in ('todo', 'in_progress', 'completed')),
    constraint tasks_priority_check check (priority in ('high', 'medium', 'low'))
);
create index if not exists tasks_group_idx on tasks(group_id, created_at desc);
create index if not exists tasks_assignee_idx on tasks(assignee_id);

create table if not exists comments(
    id integer primary key autoincrement,
    task_id integer not null references tasks(id) on delete cascade,
    user_id integer not null references users(id) on delete restrict,
    content text not null,
    created_at timestamp not null default current_timestamp,
    updated_at timestamp not null default current_timestamp,
    constraint comments_content_check check (length(content) > 0)
);
create index if not exists comments_task_idx on comments(task_id, created_at desc);
create index if not exists comments_user_idx on comments(user_id);
`
