package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flowdeck/chat-core/internal/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(Models()...))
	return NewGormStore(db)
}

func seedRoom(t *testing.T, store *GormStore, roles ...string) *domain.Room {
	t.Helper()
	room := &domain.Room{
		Name:         "engineering",
		Kind:         domain.RoomKindGeneral,
		AllowedRoles: roles,
		CreatedBy:    "alice",
	}
	require.NoError(t, store.CreateRoom(context.Background(), room))
	return room
}

func seedMessage(t *testing.T, store *GormStore, roomID, senderID, content string) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderID,
		Content:    content,
	}
	require.NoError(t, store.CreateMessage(context.Background(), msg))
	return msg
}

func TestCreateRoomAssignsDefaults(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)

	assert.NotEmpty(t, room.ID)
	assert.True(t, room.IsActive)

	found, err := store.FindRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "engineering", found.Name)
	assert.Zero(t, found.MessageCount)
}

func TestFindRoomNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FindRoom(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateMessageBumpsRoomCounters(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)

	before, err := store.FindRoom(context.Background(), room.ID)
	require.NoError(t, err)

	msg := seedMessage(t, store, room.ID, "alice", "first")
	assert.NotEmpty(t, msg.ID)

	after, err := store.FindRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, before.MessageCount+1, after.MessageCount)
	assert.False(t, after.LastActivityAt.Before(before.LastActivityAt))
}

func TestCreateMessageUnknownRoom(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateMessage(context.Background(), &domain.Message{
		RoomID:     "nope",
		SenderID:   "alice",
		SenderName: "alice",
		Content:    "hello",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSoftDeleteExcludesMessage(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)
	keep := seedMessage(t, store, room.ID, "alice", "keep me")
	gone := seedMessage(t, store, room.ID, "alice", "delete me")

	require.NoError(t, store.SoftDeleteMessage(context.Background(), gone.ID))

	_, err := store.GetMessage(context.Background(), gone.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	messages, total, err := store.ListMessages(context.Background(), room.ID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, keep.ID, messages[0].ID)
}

func TestSoftDeleteUnknownMessage(t *testing.T) {
	store := newTestStore(t)
	err := store.SoftDeleteMessage(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListMessagesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)

	base := time.Now().UTC().Add(-time.Hour)
	for i, content := range []string{"one", "two", "three"} {
		msg := &domain.Message{
			RoomID:     room.ID,
			SenderID:   "alice",
			SenderName: "alice",
			Content:    content,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateMessage(context.Background(), msg))
	}

	messages, total, err := store.ListMessages(context.Background(), room.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 2)
	assert.Equal(t, "three", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)

	messages, _, err = store.ListMessages(context.Background(), room.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "one", messages[0].Content)
}

func TestSearchMessages(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)
	seedMessage(t, store, room.ID, "alice", "deploy went fine")
	seedMessage(t, store, room.ID, "bob", "lunch at noon")
	deleted := seedMessage(t, store, room.ID, "bob", "deploy broke everything")
	require.NoError(t, store.SoftDeleteMessage(context.Background(), deleted.ID))

	messages, total, err := store.SearchMessages(context.Background(), room.ID, "deploy", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, "deploy went fine", messages[0].Content)
}

func TestEditMessage(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)
	msg := seedMessage(t, store, room.ID, "alice", "typo")

	_, err := store.EditMessage(context.Background(), msg.ID, "bob", "hijack")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	edited, err := store.EditMessage(context.Background(), msg.ID, "alice", "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)
}

func TestAddReaction(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)
	msg := seedMessage(t, store, room.ID, "alice", "ship it")

	require.NoError(t, store.AddReaction(context.Background(), msg.ID, "bob", "🚀"))
	require.NoError(t, store.AddReaction(context.Background(), msg.ID, "carol", "🚀"))

	found, err := store.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Len(t, found.Reactions, 2)

	err = store.AddReaction(context.Background(), "nope", "bob", "🚀")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkMessageReadUpserts(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)
	msg := seedMessage(t, store, room.ID, "alice", "read me")

	first := time.Now().UTC().Truncate(time.Second)
	later := first.Add(time.Hour)

	require.NoError(t, store.MarkMessageRead(context.Background(), msg.ID, "bob", first))
	require.NoError(t, store.MarkMessageRead(context.Background(), msg.ID, "bob", later))

	found, err := store.GetMessage(context.Background(), msg.ID)
	require.NoError(t, err)
	// One receipt per user, carrying the later time.
	require.Len(t, found.ReadBy, 1)
	assert.Equal(t, "bob", found.ReadBy[0].UserID)
	assert.WithinDuration(t, later, found.ReadBy[0].ReadAt, time.Second)
}

func TestMarkMessageReadUnknownMessage(t *testing.T) {
	store := newTestStore(t)
	err := store.MarkMessageRead(context.Background(), "nope", "bob", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkRoomReadOnlyMovesForward(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)

	seen := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpsertParticipant(context.Background(), &domain.Participant{
		UserID:     "alice",
		RoomID:     room.ID,
		LastSeenAt: seen,
	}))

	// An earlier read must not rewind the marker.
	require.NoError(t, store.MarkRoomRead(context.Background(), room.ID, "alice", seen.Add(-time.Hour)))
	p, err := store.FindParticipant(context.Background(), "alice", room.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, seen, p.LastSeenAt, time.Second)

	later := seen.Add(time.Hour)
	require.NoError(t, store.MarkRoomRead(context.Background(), room.ID, "alice", later))
	p, err = store.FindParticipant(context.Background(), "alice", room.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, p.LastSeenAt, time.Second)
}

func TestUpsertParticipantRejoin(t *testing.T) {
	store := newTestStore(t)
	room := seedRoom(t, store)

	require.NoError(t, store.UpsertParticipant(context.Background(), &domain.Participant{
		UserID: "alice",
		RoomID: room.ID,
	}))
	require.NoError(t, store.UpsertParticipant(context.Background(), &domain.Participant{
		UserID: "alice",
		RoomID: room.ID,
		Role:   domain.ParticipantRoleModerator,
	}))

	p, err := store.FindParticipant(context.Background(), "alice", room.ID)
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.Equal(t, domain.ParticipantRoleModerator, p.Role)

	stats, err := store.RoomStats(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ParticipantCount)
}

func TestRoomsForUserUnionDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	memberRoom := seedRoom(t, store)
	roleRoom := seedRoom(t, store, "engineer")
	bothRoom := seedRoom(t, store, "engineer")
	otherRoom := seedRoom(t, store, "manager")

	require.NoError(t, store.UpsertParticipant(ctx, &domain.Participant{UserID: "alice", RoomID: memberRoom.ID}))
	require.NoError(t, store.UpsertParticipant(ctx, &domain.Participant{UserID: "alice", RoomID: bothRoom.ID}))

	rooms, err := store.RoomsForUser(ctx, "alice", "engineer")
	require.NoError(t, err)

	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	assert.ElementsMatch(t, []string{memberRoom.ID, roleRoom.ID, bothRoom.ID}, ids)
	assert.NotContains(t, ids, otherRoom.ID)
}

func TestAddRoomParticipantIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	room := seedRoom(t, store)

	require.NoError(t, store.AddRoomParticipant(ctx, room.ID, "bob"))
	require.NoError(t, store.AddRoomParticipant(ctx, room.ID, "bob"))

	found, err := store.FindRoom(ctx, room.ID)
	require.NoError(t, err)

	var count int
	for _, id := range found.Participants {
		if id == "bob" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	err = store.AddRoomParticipant(ctx, "nope", "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &domain.User{DisplayName: "Alice", Role: "engineer", Department: "platform", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, user))
	require.NotEmpty(t, user.ID)

	found, err := store.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.DisplayName)
	assert.True(t, found.IsActive)

	_, err = store.FindUser(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
