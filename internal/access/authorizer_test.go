package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/repository"
)

// fakeStore serves rooms and participants from maps. Everything else is
// unused by the authorizer.
type fakeStore struct {
	repository.Store

	rooms        map[string]*domain.Room
	participants map[string]*domain.Participant // userID|roomID
	findErr      error
}

func (f *fakeStore) FindRoom(ctx context.Context, id string) (*domain.Room, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	room, ok := f.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return room, nil
}

func (f *fakeStore) FindParticipant(ctx context.Context, userID, roomID string) (*domain.Participant, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	p, ok := f.participants[userID+"|"+roomID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) RoomsForUser(ctx context.Context, userID, role string) ([]domain.Room, error) {
	var out []domain.Room
	for _, room := range f.rooms {
		out = append(out, *room)
	}
	return out, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:        make(map[string]*domain.Room),
		participants: make(map[string]*domain.Participant),
	}
}

func TestCanAccessParticipant(t *testing.T) {
	store := newFakeStore()
	store.rooms["room-1"] = &domain.Room{ID: "room-1", IsActive: true}
	store.participants["alice|room-1"] = &domain.Participant{
		UserID: "alice", RoomID: "room-1", IsActive: true, JoinedAt: time.Now(),
	}

	a := NewAuthorizer(store)
	id := &domain.Identity{UserID: "alice", Role: "intern"}

	// Membership grants access regardless of role.
	ok, err := a.CanAccess(context.Background(), id, "room-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAccessInactiveParticipantFallsBackToRole(t *testing.T) {
	store := newFakeStore()
	store.rooms["room-1"] = &domain.Room{ID: "room-1", IsActive: true, AllowedRoles: []string{"engineer"}}
	store.participants["alice|room-1"] = &domain.Participant{
		UserID: "alice", RoomID: "room-1", IsActive: false,
	}

	a := NewAuthorizer(store)

	ok, err := a.CanAccess(context.Background(), &domain.Identity{UserID: "alice", Role: "engineer"}, "room-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanAccess(context.Background(), &domain.Identity{UserID: "alice", Role: "intern"}, "room-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessByRole(t *testing.T) {
	store := newFakeStore()
	store.rooms["room-1"] = &domain.Room{ID: "room-1", IsActive: true, AllowedRoles: []string{"engineer", "manager"}}

	a := NewAuthorizer(store)

	ok, err := a.CanAccess(context.Background(), &domain.Identity{UserID: "bob", Role: "manager"}, "room-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanAccess(context.Background(), &domain.Identity{UserID: "bob", Role: "sales"}, "room-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessInactiveRoomDeniesRoleGrant(t *testing.T) {
	store := newFakeStore()
	store.rooms["room-1"] = &domain.Room{ID: "room-1", IsActive: false, AllowedRoles: []string{"engineer"}}

	a := NewAuthorizer(store)

	ok, err := a.CanAccess(context.Background(), &domain.Identity{UserID: "bob", Role: "engineer"}, "room-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessUnknownRoom(t *testing.T) {
	a := NewAuthorizer(newFakeStore())

	_, err := a.CanAccess(context.Background(), &domain.Identity{UserID: "bob", Role: "engineer"}, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCanAccessStoreError(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("db down")

	a := NewAuthorizer(store)

	_, err := a.CanAccess(context.Background(), &domain.Identity{UserID: "bob"}, "room-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
