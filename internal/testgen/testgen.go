// Package testgen provides fixtures for tests: a migrated in-memory database,
// seeded rows, generated media files, and multipart upload bodies.
package testgen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/pkg/config"
	"github.com/taletunes/taletunes/pkg/database"
	"github.com/taletunes/taletunes/pkg/migrations"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// Password is the plaintext password of every user created by CreateUser.
const Password = "password123"

// AudiobookOptions configures the audiobook created by CreateAudiobook.
type AudiobookOptions struct {
	Title         string // defaults to "Moonlight"
	Category      string // defaults to Fantasy
	IsPublic      bool
	GeneratedCode string   // no code when empty
	CoverImages   []string // defaults to a single cover key
	AudioFile     string   // defaults to an audio key derived from the title
}

// NewDB opens an in-memory database with every migration applied. It is
// closed when the test completes.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := database.New(config.NewForTest())
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func CreateUser(t *testing.T, db bun.IDB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	hashStr := string(hash)

	now := time.Now()
	user := &models.User{
		CreatedAt:    now,
		UpdatedAt:    now,
		Name:         username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: &hashStr,
	}
	_, err = db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

func CreateAudiobook(t *testing.T, db bun.IDB, owner *models.User, opts AudiobookOptions) *models.Audiobook {
	t.Helper()

	if opts.Title == "" {
		opts.Title = "Moonlight"
	}
	if opts.Category == "" {
		opts.Category = models.CategoryFantasy
	}
	if opts.CoverImages == nil {
		opts.CoverImages = []string{fmt.Sprintf("%s/%s-%d.jpg", models.StoragePrefixCovers, opts.Title, time.Now().UnixNano())}
	}
	if opts.AudioFile == "" {
		opts.AudioFile = fmt.Sprintf("%s/%s-%d.mp3", models.StoragePrefixAudio, opts.Title, time.Now().UnixNano())
	}

	now := time.Now()
	book := &models.Audiobook{
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      owner.ID,
		Title:       opts.Title,
		Author:      "Test Author",
		CoverImages: opts.CoverImages,
		AudioFile:   opts.AudioFile,
		Category:    opts.Category,
		IsPublic:    opts.IsPublic,
	}
	if opts.GeneratedCode != "" {
		code := opts.GeneratedCode
		book.GeneratedCode = &code
	}
	_, err := db.NewInsert().Model(book).Exec(context.Background())
	require.NoError(t, err)
	return book
}

// CreateRoom creates an active room with owner as its owner member.
func CreateRoom(t *testing.T, db bun.IDB, owner *models.User, name, code string) *models.Room {
	t.Helper()

	now := time.Now()
	room := &models.Room{
		CreatedAt: now,
		UpdatedAt: now,
		Name:      name,
		RoomCode:  code,
		UserID:    owner.ID,
		IsActive:  true,
	}
	_, err := db.NewInsert().Model(room).Exec(context.Background())
	require.NoError(t, err)

	AddMember(t, db, room, owner, models.RoomRoleOwner)
	return room
}

func AddMember(t *testing.T, db bun.IDB, room *models.Room, user *models.User, role string) *models.RoomMember {
	t.Helper()

	member := &models.RoomMember{
		RoomID:   room.ID,
		UserID:   user.ID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	_, err := db.NewInsert().Model(member).Exec(context.Background())
	require.NoError(t, err)
	return member
}

func AttachAudiobook(t *testing.T, db bun.IDB, room *models.Room, book *models.Audiobook) {
	t.Helper()

	_, err := db.NewInsert().Model(&models.RoomAudiobook{
		CreatedAt:   time.Now(),
		RoomID:      room.ID,
		AudiobookID: book.ID,
	}).Exec(context.Background())
	require.NoError(t, err)
}
