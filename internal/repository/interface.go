package repository

import (
	"context"
	"time"

	"github.com/flowdeck/chat-core/internal/domain"
)

// RoomStats is a point-in-time summary of a room.
type RoomStats struct {
	RoomID           string    `json:"room_id"`
	MessageCount     int64     `json:"message_count"`
	ParticipantCount int64     `json:"participant_count"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}

// Store is the messaging core's contract with durable persistence. It is
// the sole source of truth for rooms, participants, and message history;
// presence never touches it.
type Store interface {
	// Rooms
	CreateRoom(ctx context.Context, room *domain.Room) error
	FindRoom(ctx context.Context, id string) (*domain.Room, error)
	RoomsForUser(ctx context.Context, userID, role string) ([]domain.Room, error)
	RoomStats(ctx context.Context, roomID string) (*RoomStats, error)

	// Messages. CreateMessage persists the message and bumps the room's
	// message_count and last_activity_at in the same transaction.
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	ListMessages(ctx context.Context, roomID string, page, limit int) ([]domain.Message, int64, error)
	SearchMessages(ctx context.Context, roomID, query string, page, limit int) ([]domain.Message, int64, error)
	EditMessage(ctx context.Context, id, senderID, content string) (*domain.Message, error)
	SoftDeleteMessage(ctx context.Context, id string) error
	AddReaction(ctx context.Context, messageID, userID, emoji string) error

	// Read state
	MarkMessageRead(ctx context.Context, messageID, userID string, at time.Time) error
	MarkRoomRead(ctx context.Context, roomID, userID string, at time.Time) error

	// Participants
	UpsertParticipant(ctx context.Context, p *domain.Participant) error
	FindParticipant(ctx context.Context, userID, roomID string) (*domain.Participant, error)
	AddRoomParticipant(ctx context.Context, roomID, userID string) error

	// Users (read-mostly; the user store is owned by the platform)
	FindUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
}
