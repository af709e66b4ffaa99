package access

import (
	"context"
	"errors"

	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/repository"
)

// Authorizer decides whether a user may access a room. A user can access a
// room if an active membership record exists for the (user, room) pair, or
// if the room is active and the user's role is on its allowed-roles list.
type Authorizer struct {
	store repository.Store
}

// NewAuthorizer creates an Authorizer over the given store.
func NewAuthorizer(store repository.Store) *Authorizer {
	return &Authorizer{store: store}
}

// CanAccess reports whether the identity may join, read, and write the
// room. domain.ErrNotFound is returned for rooms that do not exist;
// everything else denies with a nil error.
func (a *Authorizer) CanAccess(ctx context.Context, id *domain.Identity, roomID string) (bool, error) {
	p, err := a.store.FindParticipant(ctx, id.UserID, roomID)
	if err == nil && p.IsActive {
		// Membership grants access regardless of role.
		return true, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	room, err := a.store.FindRoom(ctx, roomID)
	if err != nil {
		return false, err
	}

	return room.IsActive && room.RoleAllowed(id.Role), nil
}

// AccessibleRooms lists every room the identity can access: membership
// rooms unioned with role-granted rooms, de-duplicated by room id.
func (a *Authorizer) AccessibleRooms(ctx context.Context, id *domain.Identity) ([]domain.Room, error) {
	return a.store.RoomsForUser(ctx, id.UserID, id.Role)
}
