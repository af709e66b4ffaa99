package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowdeck/chat-core/internal/audit"
	"github.com/flowdeck/chat-core/internal/auth"
	"github.com/flowdeck/chat-core/internal/config"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/hub"
	"github.com/flowdeck/chat-core/internal/service"
	"github.com/flowdeck/chat-core/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler owns the websocket endpoint: credential resolution at upgrade
// time, event decoding, and conversion of handler errors into error events
// for the one offending client.
type WSHandler struct {
	hub      *hub.Hub
	resolver *auth.Resolver
	service  service.ChatService
	wsCfg    config.WebSocketConfig
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(h *hub.Hub, resolver *auth.Resolver, svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		resolver: resolver,
		service:  svc,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket authenticates and upgrades one connection. A bad
// credential rejects the connection outright; no session is created.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(r.Context(), credentialFrom(r))
	if err != nil {
		audit.Log(r.Context(), audit.ActionAuthFailed, "", "connection rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), identity, h.hub, conn, h.wsCfg)
	h.hub.Register(client)
	h.service.HandleConnect(r.Context(), client.ID, identity)

	go client.WritePump()
	go client.ReadPump(h.handleEvent, h.handleClose)
}

// credentialFrom extracts the connection credential from the Authorization
// header or, for browser clients that cannot set headers on websocket
// dials, the token query parameter.
func credentialFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// contextWithSession builds a context whose logger carries the session
// and actor fields, so every handler log line is attributable.
func contextWithSession(c *hub.Client) context.Context {
	l := log.L().With().
		Str(log.FieldSessionID, c.ID).
		Str(log.FieldUserID, c.Identity.UserID).
		Logger()
	return log.WithLogger(context.Background(), l)
}

func (h *WSHandler) handleClose(client *hub.Client) {
	h.service.HandleDisconnect(contextWithSession(client), client.ID, client.Identity)
}

func (h *WSHandler) handleEvent(client *hub.Client, message []byte) {
	ctx := contextWithSession(client)

	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid event format"))
		return
	}

	switch base.Type {
	case domain.EventJoinRoom:
		var ev domain.JoinRoomEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid join-room event"))
			return
		}
		h.report(client, h.service.HandleJoinRoom(ctx, client.ID, client.Identity, ev.RoomID))

	case domain.EventLeaveRoom:
		var ev domain.LeaveRoomEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid leave-room event"))
			return
		}
		h.report(client, h.service.HandleLeaveRoom(ctx, client.ID, client.Identity, ev.RoomID))

	case domain.EventSendMessage:
		var ev domain.SendMessageEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid send-message event"))
			return
		}
		_, err := h.service.HandleSendMessage(ctx, client.ID, client.Identity, &ev)
		h.report(client, err)

	case domain.EventTypingStart:
		var ev domain.TypingEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid typing-start event"))
			return
		}
		h.report(client, h.service.HandleTypingStart(ctx, client.ID, client.Identity, ev.RoomID))

	case domain.EventTypingStop:
		var ev domain.TypingEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid typing-stop event"))
			return
		}
		h.report(client, h.service.HandleTypingStop(ctx, client.ID, client.Identity, ev.RoomID))

	case domain.EventMessageRead:
		var ev domain.MessageReadEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.MessageID == "" || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid message-read event"))
			return
		}
		h.report(client, h.service.HandleMessageRead(ctx, client.ID, client.Identity, ev.MessageID, ev.RoomID))

	case domain.EventRoomRead:
		var ev domain.RoomReadEvent
		if err := json.Unmarshal(message, &ev); err != nil || ev.RoomID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid room-read event"))
			return
		}
		h.report(client, h.service.HandleRoomRead(ctx, client.ID, client.Identity, ev.RoomID))

	case domain.EventPing:
		client.SendEvent(&domain.BaseEvent{Type: domain.EventPong})

	default:
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "unknown event type"))
	}
}

// report converts a taxonomy error into an error event for the client.
// Failures are non-fatal: the connection and the client's other rooms are
// unaffected.
func (h *WSHandler) report(client *hub.Client, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeAccessDenied, "room access denied"))
	case errors.Is(err, domain.ErrNotFound):
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeNotFound, "target not found"))
	case errors.Is(err, domain.ErrPersistenceFailed):
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodePersistence, "message could not be saved, please retry"))
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMessageTooLong):
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, err.Error()))
	default:
		log.L().Error().Err(err).Str(log.FieldSessionID, client.ID).Msg("event handler error")
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeInternal, "internal error"))
	}
}
