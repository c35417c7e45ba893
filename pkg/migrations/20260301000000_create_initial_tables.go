package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		statements := []string{
			`
			CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				username TEXT NOT NULL,
				email TEXT NOT NULL,
				password_hash TEXT,
				google_id TEXT,
				avatar TEXT
			)
			`,
			`CREATE UNIQUE INDEX ux_users_username ON users (username COLLATE NOCASE)`,
			`CREATE UNIQUE INDEX ux_users_email ON users (email COLLATE NOCASE)`,
			`
			CREATE TABLE audiobooks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				description TEXT,
				duration TEXT,
				cover_images TEXT NOT NULL DEFAULT '[]',
				audio_file TEXT NOT NULL,
				category TEXT NOT NULL,
				is_public BOOLEAN NOT NULL DEFAULT FALSE,
				generated_code TEXT
			)
			`,
			`CREATE INDEX ix_audiobooks_user_id ON audiobooks (user_id)`,
			`CREATE INDEX ix_audiobooks_public_category ON audiobooks (is_public, category)`,
			`CREATE UNIQUE INDEX ux_audiobooks_generated_code ON audiobooks (generated_code) WHERE generated_code IS NOT NULL`,
			`
			CREATE TABLE rooms (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				description TEXT,
				room_code TEXT NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			)
			`,
			`CREATE UNIQUE INDEX ux_rooms_room_code ON rooms (room_code)`,
			`CREATE INDEX ix_rooms_user_id ON rooms (user_id)`,
			`
			CREATE TABLE room_members (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				room_id INTEGER REFERENCES rooms (id) ON DELETE CASCADE NOT NULL,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				role TEXT NOT NULL CHECK (role IN ('owner', 'moderator', 'member')),
				joined_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
			`,
			`CREATE UNIQUE INDEX ux_room_members ON room_members (room_id, user_id)`,
			`CREATE UNIQUE INDEX ux_room_members_owner ON room_members (room_id) WHERE role = 'owner'`,
			`CREATE INDEX ix_room_members_user_id ON room_members (user_id)`,
			`
			CREATE TABLE room_audiobooks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				room_id INTEGER REFERENCES rooms (id) ON DELETE CASCADE NOT NULL,
				audiobook_id INTEGER REFERENCES audiobooks (id) ON DELETE CASCADE NOT NULL
			)
			`,
			`CREATE UNIQUE INDEX ux_room_audiobooks ON room_audiobooks (room_id, audiobook_id)`,
			`CREATE INDEX ix_room_audiobooks_audiobook_id ON room_audiobooks (audiobook_id)`,
			`
			CREATE TABLE favorites (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				audiobook_id INTEGER REFERENCES audiobooks (id) ON DELETE CASCADE NOT NULL
			)
			`,
			`CREATE UNIQUE INDEX ux_favorites ON favorites (user_id, audiobook_id)`,
			`CREATE INDEX ix_favorites_audiobook_id ON favorites (audiobook_id)`,
			`
			CREATE TABLE comments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				audiobook_id INTEGER REFERENCES audiobooks (id) ON DELETE CASCADE NOT NULL,
				content TEXT NOT NULL
			)
			`,
			`CREATE INDEX ix_comments_audiobook_id ON comments (audiobook_id)`,
		}

		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(ctx context.Context, db *bun.DB) error {
		tables := []string{"comments", "favorites", "room_audiobooks", "room_members", "rooms", "audiobooks", "users"}
		for _, table := range tables {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
