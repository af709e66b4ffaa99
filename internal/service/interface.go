package service

import (
	"context"

	"github.com/flowdeck/chat-core/internal/cache"
	"github.com/flowdeck/chat-core/internal/domain"
)

// Dispatcher is the outbound event surface the service layer emits
// through. The hub implements it over websockets; tests substitute a
// recorder. Keeping business logic behind this interface means the
// transport can change without touching the pipeline.
type Dispatcher interface {
	ToRoom(roomID string, payload interface{}, excludeSession string) error
	ToUser(userID string, payload interface{}) error
	ToSession(sessionID string, payload interface{}) error
}

// ChatService handles every inbound event of an authenticated session.
// Returned errors belong to the domain taxonomy; the connection boundary
// converts them to error events for the one offending client.
type ChatService interface {
	HandleConnect(ctx context.Context, sessionID string, id *domain.Identity)
	HandleJoinRoom(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error
	HandleLeaveRoom(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error
	HandleSendMessage(ctx context.Context, sessionID string, id *domain.Identity, ev *domain.SendMessageEvent) (*domain.Message, error)
	HandleTypingStart(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error
	HandleTypingStop(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error
	HandleMessageRead(ctx context.Context, sessionID string, id *domain.Identity, messageID, roomID string) error
	HandleRoomRead(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error
	HandleDisconnect(ctx context.Context, sessionID string, id *domain.Identity)
}

// HistoryService serves paginated history and search for the REST surface.
type HistoryService interface {
	GetHistory(ctx context.Context, roomID string, page, limit int) (*cache.HistoryPage, error)
	Search(ctx context.Context, roomID, query string, page, limit int) ([]domain.Message, int64, error)
}
