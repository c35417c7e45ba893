package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/internal/testgen"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
)

func TestCanViewAudiobook(t *testing.T) {
	db := testgen.NewDB(t)
	ctx := context.Background()

	alice := testgen.CreateUser(t, db, "alice")
	bob := testgen.CreateUser(t, db, "bob")
	carol := testgen.CreateUser(t, db, "carol")

	public := testgen.CreateAudiobook(t, db, alice, testgen.AudiobookOptions{Title: "Public", IsPublic: true})
	private := testgen.CreateAudiobook(t, db, alice, testgen.AudiobookOptions{Title: "Private"})
	shared := testgen.CreateAudiobook(t, db, alice, testgen.AudiobookOptions{Title: "Shared"})

	room := testgen.CreateRoom(t, db, alice, "Book Club", "7F3K9A")
	testgen.AddMember(t, db, room, bob, models.RoomRoleMember)
	testgen.AttachAudiobook(t, db, room, shared)

	cases := []struct {
		name   string
		viewer *models.User
		book   *models.Audiobook
		want   bool
	}{
		{"anonymous sees public", nil, public, true},
		{"anonymous denied private", nil, private, false},
		{"stranger sees public", carol, public, true},
		{"owner sees private", alice, private, true},
		{"stranger denied private", carol, private, false},
		{"room member sees shared", bob, shared, true},
		{"room member denied unshared private", bob, private, false},
		{"stranger denied shared", carol, shared, false},
		{"anonymous denied shared", nil, shared, false},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanViewAudiobook(ctx, db, tt.viewer, tt.book)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("RequireView returns forbidden", func(t *testing.T) {
		err := RequireView(ctx, db, carol, private)
		var e *errcodes.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 403, e.HTTPCode)
	})
}

func TestVisibleAudiobooks(t *testing.T) {
	db := testgen.NewDB(t)
	ctx := context.Background()

	alice := testgen.CreateUser(t, db, "alice")
	bob := testgen.CreateUser(t, db, "bob")

	testgen.CreateAudiobook(t, db, alice, testgen.AudiobookOptions{Title: "Public", IsPublic: true})
	testgen.CreateAudiobook(t, db, alice, testgen.AudiobookOptions{Title: "Private"})
	shared := testgen.CreateAudiobook(t, db, alice, testgen.AudiobookOptions{Title: "Shared"})
	testgen.CreateAudiobook(t, db, bob, testgen.AudiobookOptions{Title: "Bobs"})

	room := testgen.CreateRoom(t, db, alice, "Book Club", "7F3K9A")
	testgen.AddMember(t, db, room, bob, models.RoomRoleMember)
	testgen.AttachAudiobook(t, db, room, shared)

	titles := func(viewer *models.User) []string {
		var books []*models.Audiobook
		q := db.NewSelect().Model(&books).Order("a.id ASC")
		err := VisibleAudiobooks(q, viewer).Scan(ctx)
		require.NoError(t, err)
		out := []string{}
		for _, b := range books {
			out = append(out, b.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Public"}, titles(nil))
	assert.Equal(t, []string{"Public", "Shared", "Bobs"}, titles(bob))
	assert.Equal(t, []string{"Public", "Private", "Shared"}, titles(alice))
}

func TestMembership(t *testing.T) {
	db := testgen.NewDB(t)
	ctx := context.Background()

	alice := testgen.CreateUser(t, db, "alice")
	bob := testgen.CreateUser(t, db, "bob")
	carol := testgen.CreateUser(t, db, "carol")
	dave := testgen.CreateUser(t, db, "dave")

	room := testgen.CreateRoom(t, db, alice, "Book Club", "7F3K9A")
	testgen.AddMember(t, db, room, bob, models.RoomRoleModerator)
	testgen.AddMember(t, db, room, carol, models.RoomRoleMember)

	role, ok, err := MemberRole(ctx, db, room.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoomRoleOwner, role)

	_, ok, err = MemberRole(ctx, db, room.ID, dave.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := IsOwner(ctx, db, room.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, owner)

	owner, err = IsOwner(ctx, db, room.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, owner)

	for user, want := range map[*models.User]bool{alice: true, bob: true, carol: false, dave: false} {
		got, err := CanManageRoom(ctx, db, room.ID, user.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got, user.Username)
	}

	member, err := IsMember(ctx, db, room.ID, carol.ID)
	require.NoError(t, err)
	assert.True(t, member)
}
