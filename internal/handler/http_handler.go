package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck/chat-core/internal/access"
	"github.com/flowdeck/chat-core/internal/audit"
	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/internal/presence"
	"github.com/flowdeck/chat-core/internal/repository"
	"github.com/flowdeck/chat-core/internal/service"
	"github.com/flowdeck/chat-core/pkg/response"
)

// HTTPHandler serves the REST collaborator surface: room management,
// history pagination, search, stats, and message maintenance. The
// real-time pipeline stays on the websocket endpoint.
type HTTPHandler struct {
	store      repository.Store
	authorizer *access.Authorizer
	history    service.HistoryService
	presence   *presence.Tracker
	pageSize   int
}

// NewHTTPHandler creates the REST handler.
func NewHTTPHandler(
	store repository.Store,
	authorizer *access.Authorizer,
	history service.HistoryService,
	p *presence.Tracker,
	pageSize int,
) *HTTPHandler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &HTTPHandler{
		store:      store,
		authorizer: authorizer,
		history:    history,
		presence:   p,
		pageSize:   pageSize,
	}
}

// RegisterRoutes mounts the REST surface on the router group.
func (h *HTTPHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/rooms", h.createRoom)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.POST("/rooms/:id/join", h.joinRoom)
	api.GET("/rooms/:id/messages", h.listMessages)
	api.GET("/rooms/:id/messages/search", h.searchMessages)
	api.GET("/rooms/:id/stats", h.roomStats)
	api.PATCH("/messages/:id", h.editMessage)
	api.DELETE("/messages/:id", h.deleteMessage)
	api.POST("/messages/:id/reactions", h.addReaction)
}

type createRoomRequest struct {
	Name         string              `json:"name" binding:"required"`
	Description  string              `json:"description"`
	Kind         string              `json:"kind"`
	AllowedRoles []string            `json:"allowed_roles"`
	Settings     domain.RoomSettings `json:"settings"`
}

func (h *HTTPHandler) createRoom(c *gin.Context) {
	id := identityFrom(c)

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid room payload")
		return
	}

	kind := domain.RoomKind(req.Kind)
	if kind == "" {
		kind = domain.RoomKindGeneral
	}

	room := &domain.Room{
		Name:         req.Name,
		Description:  req.Description,
		Kind:         kind,
		Participants: []string{id.UserID},
		Admins:       []string{id.UserID},
		AllowedRoles: req.AllowedRoles,
		CreatedBy:    id.UserID,
		Settings:     req.Settings,
	}

	ctx := c.Request.Context()
	if err := h.store.CreateRoom(ctx, room); err != nil {
		response.InternalError(c, "failed to create room")
		return
	}

	participant := &domain.Participant{
		UserID: id.UserID,
		RoomID: room.ID,
		Role:   domain.ParticipantRoleAdmin,
		Notify: domain.NotificationPrefs{OnMention: true},
	}
	if err := h.store.UpsertParticipant(ctx, participant); err != nil {
		response.InternalError(c, "failed to register room creator")
		return
	}

	audit.LogRoom(ctx, audit.ActionCreateRoom, id.UserID, room.ID, "room created")
	response.Created(c, room)
}

func (h *HTTPHandler) listRooms(c *gin.Context) {
	id := identityFrom(c)

	rooms, err := h.authorizer.AccessibleRooms(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, "failed to list rooms")
		return
	}
	response.Success(c, rooms)
}

func (h *HTTPHandler) getRoom(c *gin.Context) {
	id := identityFrom(c)
	roomID := c.Param("id")

	if !h.requireAccess(c, id, roomID) {
		return
	}

	room, err := h.store.FindRoom(c.Request.Context(), roomID)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	response.Success(c, room)
}

func (h *HTTPHandler) joinRoom(c *gin.Context) {
	id := identityFrom(c)
	roomID := c.Param("id")
	ctx := c.Request.Context()

	room, err := h.store.FindRoom(ctx, roomID)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	if !room.IsActive || (room.Kind == domain.RoomKindPrivate && !room.RoleAllowed(id.Role)) {
		response.Forbidden(c, "room not joinable")
		return
	}

	participant := &domain.Participant{
		UserID: id.UserID,
		RoomID: roomID,
		Role:   domain.ParticipantRoleMember,
		Notify: domain.NotificationPrefs{OnMention: true},
	}
	if err := h.store.UpsertParticipant(ctx, participant); err != nil {
		h.reportErr(c, err)
		return
	}
	if err := h.store.AddRoomParticipant(ctx, roomID, id.UserID); err != nil {
		h.reportErr(c, err)
		return
	}

	response.Success(c, participant)
}

func (h *HTTPHandler) listMessages(c *gin.Context) {
	id := identityFrom(c)
	roomID := c.Param("id")

	if !h.requireAccess(c, id, roomID) {
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", h.pageSize)

	result, err := h.history.GetHistory(c.Request.Context(), roomID, page, limit)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	response.Success(c, gin.H{
		"messages": result.Messages,
		"total":    result.Total,
		"page":     page,
		"limit":    limit,
	})
}

func (h *HTTPHandler) searchMessages(c *gin.Context) {
	id := identityFrom(c)
	roomID := c.Param("id")

	if !h.requireAccess(c, id, roomID) {
		return
	}

	query := c.Query("q")
	if query == "" {
		response.BadRequest(c, "missing search query")
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	messages, total, err := h.history.Search(c.Request.Context(), roomID, query, page, limit)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	response.Success(c, gin.H{
		"messages": messages,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func (h *HTTPHandler) roomStats(c *gin.Context) {
	id := identityFrom(c)
	roomID := c.Param("id")

	if !h.requireAccess(c, id, roomID) {
		return
	}

	stats, err := h.store.RoomStats(c.Request.Context(), roomID)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	response.Success(c, gin.H{
		"room_id":           stats.RoomID,
		"message_count":     stats.MessageCount,
		"participant_count": stats.ParticipantCount,
		"last_activity_at":  stats.LastActivityAt,
		"online_count":      len(h.presence.OnlineUsers(roomID)),
	})
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *HTTPHandler) editMessage(c *gin.Context) {
	id := identityFrom(c)
	messageID := c.Param("id")

	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid edit payload")
		return
	}

	msg, err := h.store.EditMessage(c.Request.Context(), messageID, id.UserID, req.Content)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	response.Success(c, msg)
}

func (h *HTTPHandler) deleteMessage(c *gin.Context) {
	id := identityFrom(c)
	messageID := c.Param("id")
	ctx := c.Request.Context()

	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil {
		h.reportErr(c, err)
		return
	}

	if msg.SenderID != id.UserID {
		room, err := h.store.FindRoom(ctx, msg.RoomID)
		if err != nil {
			h.reportErr(c, err)
			return
		}
		if !room.IsAdmin(id.UserID) {
			response.Forbidden(c, "only the sender or a room admin may delete")
			return
		}
	}

	if err := h.store.SoftDeleteMessage(ctx, messageID); err != nil {
		h.reportErr(c, err)
		return
	}

	audit.LogRoom(ctx, audit.ActionDeleteMsg, id.UserID, msg.RoomID, "message soft-deleted")
	response.Success(c, gin.H{"deleted": true})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *HTTPHandler) addReaction(c *gin.Context) {
	id := identityFrom(c)
	messageID := c.Param("id")
	ctx := c.Request.Context()

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid reaction payload")
		return
	}

	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil {
		h.reportErr(c, err)
		return
	}
	if !h.requireAccess(c, id, msg.RoomID) {
		return
	}

	if err := h.store.AddReaction(ctx, messageID, id.UserID, req.Emoji); err != nil {
		h.reportErr(c, err)
		return
	}
	response.Success(c, gin.H{"reacted": true})
}

// requireAccess writes the error response and returns false when the
// identity may not access the room.
func (h *HTTPHandler) requireAccess(c *gin.Context, id *domain.Identity, roomID string) bool {
	ok, err := h.authorizer.CanAccess(c.Request.Context(), id, roomID)
	if err != nil {
		h.reportErr(c, err)
		return false
	}
	if !ok {
		response.Forbidden(c, "room access denied")
		return false
	}
	return true
}

func (h *HTTPHandler) reportErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, domain.ErrAccessDenied):
		response.Forbidden(c, "access denied")
	default:
		response.InternalError(c, "internal error")
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
