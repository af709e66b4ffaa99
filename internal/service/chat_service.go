package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowdeck/chat-core/internal/access"
	"github.com/flowdeck/chat-core/internal/audit"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/presence"
	"github.com/flowdeck/chat-core/internal/repository"
	"github.com/flowdeck/chat-core/pkg/log"
)

// Limits bound user-supplied message content.
type Limits struct {
	MaxContentLength int
	SnippetLength    int
}

type chatService struct {
	store      repository.Store
	authorizer *access.Authorizer
	presence   *presence.Tracker
	typing     *presence.TypingTracker
	dispatcher Dispatcher
	limits     Limits
}

// NewChatService wires the messaging core's event handlers.
func NewChatService(
	store repository.Store,
	authorizer *access.Authorizer,
	p *presence.Tracker,
	typing *presence.TypingTracker,
	dispatcher Dispatcher,
	limits Limits,
) ChatService {
	if limits.MaxContentLength <= 0 {
		limits.MaxContentLength = 4000
	}
	if limits.SnippetLength <= 0 {
		limits.SnippetLength = 80
	}
	return &chatService{
		store:      store,
		authorizer: authorizer,
		presence:   p,
		typing:     typing,
		dispatcher: dispatcher,
		limits:     limits,
	}
}

// HandleConnect records the authenticated session as online.
func (s *chatService) HandleConnect(ctx context.Context, sessionID string, id *domain.Identity) {
	s.presence.Connect(sessionID, id.UserID)
	audit.Log(ctx, audit.ActionConnect, id.UserID, "session connected")
}

// HandleJoinRoom checks room access, adds the session to presence, tells
// the room, and replies with the current online-users set.
func (s *chatService) HandleJoinRoom(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error {
	ok, err := s.authorizer.CanAccess(ctx, id, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s to room %s: %w", id.UserID, roomID, domain.ErrAccessDenied)
	}

	alreadyInRoom := s.presence.UserInRoom(id.UserID, roomID)
	s.presence.Join(sessionID, id.UserID, roomID)
	audit.LogRoom(ctx, audit.ActionJoinRoom, id.UserID, roomID, "joined room")

	// Announce the user once, not once per device.
	if !alreadyInRoom {
		s.dispatcher.ToRoom(roomID, &domain.PresenceEvent{
			Type:      domain.EventUserJoined,
			UserID:    id.UserID,
			UserName:  id.DisplayName,
			RoomID:    roomID,
			Timestamp: time.Now().UTC(),
		}, sessionID)
	}

	return s.dispatcher.ToSession(sessionID, s.onlineUsersEvent(ctx, roomID))
}

// HandleLeaveRoom removes the session from the room and clears its typing
// state there.
func (s *chatService) HandleLeaveRoom(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error {
	if !s.presence.InRoom(sessionID, roomID) {
		return nil
	}

	s.presence.Leave(sessionID, roomID)
	audit.LogRoom(ctx, audit.ActionLeaveRoom, id.UserID, roomID, "left room")

	if !s.presence.UserInRoom(id.UserID, roomID) {
		if s.typing.Stop(roomID, id.UserID) {
			s.broadcastTyping(domain.EventUserStoppedTyping, roomID, id)
		}
		s.dispatcher.ToRoom(roomID, &domain.PresenceEvent{
			Type:      domain.EventUserLeft,
			UserID:    id.UserID,
			UserName:  id.DisplayName,
			RoomID:    roomID,
			Timestamp: time.Now().UTC(),
		}, sessionID)
	}

	return nil
}

// HandleSendMessage runs the message pipeline: authorize, persist,
// resolve reply preview, self-read, broadcast, notify mentions. Broadcast
// is unreachable unless persistence succeeded; a message is sent only
// once persisted.
func (s *chatService) HandleSendMessage(ctx context.Context, sessionID string, id *domain.Identity, ev *domain.SendMessageEvent) (*domain.Message, error) {
	content := ev.Content
	if content == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len([]rune(content)) > s.limits.MaxContentLength {
		return nil, domain.ErrMessageTooLong
	}

	// Step 1: the sender must currently have access; failing this
	// performs no further action.
	ok, err := s.authorizer.CanAccess(ctx, id, ev.RoomID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %s to room %s: %w", id.UserID, ev.RoomID, domain.ErrAccessDenied)
	}

	kind := domain.MessageKind(ev.MessageType)
	if kind == "" {
		kind = domain.MessageKindText
	}

	msg := &domain.Message{
		RoomID:      ev.RoomID,
		SenderID:    id.UserID,
		SenderName:  id.DisplayName,
		Content:     content,
		Kind:        kind,
		Attachments: ev.Attachments,
		ReplyToID:   ev.ReplyTo,
		Mentions:    ev.Mentions,
		CreatedAt:   time.Now().UTC(),
	}

	// Step 2: persist, atomically bumping the room's counters. Failure
	// aborts the pipeline; no broadcast ever happens for this message.
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	audit.LogRoom(ctx, audit.ActionSendMessage, id.UserID, ev.RoomID, "message persisted")

	// Step 3: reply preview; a missing or deleted target degrades to no
	// preview, the message is still sent.
	if msg.ReplyToID != "" {
		if target, err := s.store.GetMessage(ctx, msg.ReplyToID); err == nil {
			msg.ReplyPreview = &domain.ReplyPreview{
				MessageID:  target.ID,
				SenderName: target.SenderName,
				Snippet:    target.Snippet(s.limits.SnippetLength),
				CreatedAt:  target.CreatedAt,
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldMessageID, msg.ReplyToID).Msg("reply preview lookup failed")
		}
	}

	// Step 4: the sender has implicitly read their own message.
	now := time.Now().UTC()
	if err := s.store.MarkMessageRead(ctx, msg.ID, id.UserID, now); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("sender self-read failed")
	} else {
		msg.ReadBy = append(msg.ReadBy, domain.ReadReceipt{UserID: id.UserID, ReadAt: now})
	}

	// Step 5: broadcast to every session present in the room, including
	// the sender's own sessions, so all their devices converge.
	s.dispatcher.ToRoom(ev.RoomID, &domain.NewMessageEvent{
		Type:    domain.EventNewMessage,
		Message: msg,
	}, "")

	// Step 6: targeted mention notifications, independent of room
	// presence. Offline mentions are dropped by design.
	for _, mentioned := range msg.Mentions {
		if mentioned == id.UserID {
			continue
		}
		if !s.presence.IsOnline(mentioned) {
			continue
		}
		s.dispatcher.ToUser(mentioned, &domain.MentionNotificationEvent{
			Type:        domain.EventMentionNotification,
			Message:     msg,
			MentionedBy: id.UserID,
			RoomID:      ev.RoomID,
		})
	}

	return msg, nil
}

// HandleTypingStart marks the user typing and tells the rest of the room.
func (s *chatService) HandleTypingStart(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error {
	if !s.presence.InRoom(sessionID, roomID) {
		return fmt.Errorf("typing in room %s: %w", roomID, domain.ErrAccessDenied)
	}
	if s.typing.Start(roomID, id.UserID) {
		s.broadcastTyping(domain.EventUserTyping, roomID, id)
	}
	return nil
}

// HandleTypingStop clears the user's typing state in the room.
func (s *chatService) HandleTypingStop(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error {
	if s.typing.Stop(roomID, id.UserID) {
		s.broadcastTyping(domain.EventUserStoppedTyping, roomID, id)
	}
	return nil
}

// HandleMessageRead records a read receipt and broadcasts it to the room.
// Marking the same message twice keeps one receipt with the later time.
func (s *chatService) HandleMessageRead(ctx context.Context, sessionID string, id *domain.Identity, messageID, roomID string) error {
	ok, err := s.authorizer.CanAccess(ctx, id, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("read in room %s: %w", roomID, domain.ErrAccessDenied)
	}

	// The message must actually live in the claimed room, or a client
	// could push receipt events into rooms the message never touched.
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != roomID {
		return fmt.Errorf("message %s not in room %s: %w", messageID, roomID, domain.ErrNotFound)
	}

	now := time.Now().UTC()
	if err := s.store.MarkMessageRead(ctx, messageID, id.UserID, now); err != nil {
		return err
	}

	s.dispatcher.ToRoom(roomID, &domain.MessageReadReceiptEvent{
		Type:      domain.EventMessageReadReceipt,
		MessageID: messageID,
		RoomID:    roomID,
		ReadBy:    id.UserID,
		ReadAt:    now,
	}, "")
	return nil
}

// HandleRoomRead advances the user's last-seen marker for the room and
// broadcasts a room-level receipt.
func (s *chatService) HandleRoomRead(ctx context.Context, sessionID string, id *domain.Identity, roomID string) error {
	ok, err := s.authorizer.CanAccess(ctx, id, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("read in room %s: %w", roomID, domain.ErrAccessDenied)
	}

	now := time.Now().UTC()
	if err := s.store.MarkRoomRead(ctx, roomID, id.UserID, now); err != nil {
		return err
	}

	s.dispatcher.ToRoom(roomID, &domain.RoomReadReceiptEvent{
		Type:   domain.EventRoomReadReceipt,
		RoomID: roomID,
		ReadBy: id.UserID,
		ReadAt: now,
	}, "")
	return nil
}

// HandleDisconnect tears down all presence and typing state for the
// session. It runs exactly once per disconnecting session and is
// defensive: a failure in one room never skips cleanup of the rest.
func (s *chatService) HandleDisconnect(ctx context.Context, sessionID string, id *domain.Identity) {
	left := s.presence.Disconnect(sessionID, id.UserID)

	// If this was the user's last session in a room, their typing state
	// and presence there must not linger.
	for _, roomID := range left {
		if s.presence.UserInRoom(id.UserID, roomID) {
			continue // another device is still in the room
		}

		if s.typing.Stop(roomID, id.UserID) {
			s.broadcastTyping(domain.EventUserStoppedTyping, roomID, id)
		}

		if err := s.dispatcher.ToRoom(roomID, &domain.PresenceEvent{
			Type:      domain.EventUserOffline,
			UserID:    id.UserID,
			UserName:  id.DisplayName,
			RoomID:    roomID,
			Timestamp: time.Now().UTC(),
		}, sessionID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("departure notice failed, continuing cleanup")
		}
	}

	// Typing state in rooms the session had already left.
	for _, roomID := range s.typing.ClearUser(id.UserID) {
		s.broadcastTyping(domain.EventUserStoppedTyping, roomID, id)
	}

	audit.Log(ctx, audit.ActionDisconnect, id.UserID, "session disconnected")
}

func (s *chatService) broadcastTyping(event, roomID string, id *domain.Identity) {
	s.dispatcher.ToRoom(roomID, &domain.TypingNotifyEvent{
		Type:     event,
		UserID:   id.UserID,
		UserName: id.DisplayName,
		RoomID:   roomID,
	}, "")
}

func (s *chatService) onlineUsersEvent(ctx context.Context, roomID string) *domain.OnlineUsersEvent {
	userIDs := s.presence.OnlineUsers(roomID)
	users := make([]domain.OnlineUser, 0, len(userIDs))
	for _, uid := range userIDs {
		name := uid
		if u, err := s.store.FindUser(ctx, uid); err == nil {
			name = u.DisplayName
		}
		users = append(users, domain.OnlineUser{UserID: uid, UserName: name})
	}
	return &domain.OnlineUsersEvent{
		Type:   domain.EventOnlineUsers,
		RoomID: roomID,
		Users:  users,
	}
}
