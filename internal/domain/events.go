package domain

import "time"

// WebSocket event types from client.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventMessageRead = "message-read"
	EventRoomRead    = "room-read"
	EventPing        = "ping"
)

// WebSocket event types to client.
const (
	EventNewMessage          = "new-message"
	EventUserJoined          = "user-joined"
	EventUserLeft            = "user-left"
	EventUserOffline         = "user-offline"
	EventOnlineUsers         = "online-users"
	EventUserTyping          = "user-typing"
	EventUserStoppedTyping   = "user-stopped-typing"
	EventMentionNotification = "mention-notification"
	EventMessageReadReceipt  = "message-read-receipt"
	EventRoomReadReceipt     = "room-read-receipt"
	EventError               = "error"
	EventPong                = "pong"
)

// Error codes carried on error events.
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeAccessDenied    = "ACCESS_DENIED"
	ErrCodePersistence     = "PERSISTENCE_FAILED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// BaseEvent is the base structure for all WebSocket events.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type JoinRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type LeaveRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type SendMessageEvent struct {
	Type        string       `json:"type"`
	RoomID      string       `json:"room_id"`
	Content     string       `json:"content"`
	MessageType string       `json:"message_type,omitempty"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type TypingEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type MessageReadEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	RoomID    string `json:"room_id"`
}

type RoomReadEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// Server -> Client events

type NewMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type PresenceEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	RoomID    string    `json:"room_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type OnlineUser struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

type OnlineUsersEvent struct {
	Type   string       `json:"type"`
	RoomID string       `json:"room_id"`
	Users  []OnlineUser `json:"users"`
}

type TypingNotifyEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	RoomID   string `json:"room_id"`
}

type MentionNotificationEvent struct {
	Type        string   `json:"type"`
	Message     *Message `json:"message"`
	MentionedBy string   `json:"mentioned_by"`
	RoomID      string   `json:"room_id"`
}

type MessageReadReceiptEvent struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	ReadBy    string    `json:"read_by"`
	ReadAt    time.Time `json:"read_at"`
}

type RoomReadReceiptEvent struct {
	Type   string    `json:"type"`
	RoomID string    `json:"room_id"`
	ReadBy string    `json:"read_by"`
	ReadAt time.Time `json:"read_at"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:    EventError,
		Code:    code,
		Message: message,
	}
}
