package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowdeck/chat-core/internal/domain"
	"github.com/flowdeck/chat-core/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models returns every model the store persists, for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&domain.UserModel{},
		&domain.RoomModel{},
		&domain.ParticipantModel{},
		&domain.MessageModel{},
		&domain.AttachmentModel{},
		&domain.ReactionModel{},
		&domain.ReadReceiptModel{},
	}
}

// CreateRoom creates a new room.
func (s *GormStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	room.IsActive = true
	if room.LastActivityAt.IsZero() {
		room.LastActivityAt = time.Now().UTC()
	}

	model := domain.RoomToModel(room)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create room in db")
		return fmt.Errorf("create room: %w", domain.ErrPersistenceFailed)
	}

	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// FindRoom retrieves a room by ID.
func (s *GormStore) FindRoom(ctx context.Context, id string) (*domain.Room, error) {
	var model domain.RoomModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to find room")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// RoomsForUser lists rooms the user can access: rooms with an active
// membership record, unioned with active rooms whose allowed-roles list
// contains the user's role, de-duplicated by room id.
func (s *GormStore) RoomsForUser(ctx context.Context, userID, role string) ([]domain.Room, error) {
	l := log.Ctx(ctx)

	var memberModels []domain.RoomModel
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&domain.ParticipantModel{}).
			Select("room_id").
			Where("user_id = ? AND is_active = ?", userID, true)).
		Find(&memberModels).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list membership rooms")
		return nil, err
	}

	var roleModels []domain.RoomModel
	err = s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("allowed_roles LIKE ?", `%"`+role+`"%`).
		Find(&roleModels).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to list role rooms")
		return nil, err
	}

	seen := make(map[string]struct{}, len(memberModels)+len(roleModels))
	rooms := make([]domain.Room, 0, len(memberModels)+len(roleModels))
	for i := range memberModels {
		seen[memberModels[i].ID] = struct{}{}
		rooms = append(rooms, *memberModels[i].ToDomain())
	}
	for i := range roleModels {
		if _, dup := seen[roleModels[i].ID]; dup {
			continue
		}
		rooms = append(rooms, *roleModels[i].ToDomain())
	}

	return rooms, nil
}

// RoomStats returns a point-in-time summary of a room.
func (s *GormStore) RoomStats(ctx context.Context, roomID string) (*RoomStats, error) {
	room, err := s.FindRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var participants int64
	err = s.db.WithContext(ctx).Model(&domain.ParticipantModel{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Count(&participants).Error
	if err != nil {
		return nil, err
	}

	return &RoomStats{
		RoomID:           roomID,
		MessageCount:     room.MessageCount,
		ParticipantCount: participants,
		LastActivityAt:   room.LastActivityAt,
	}, nil
}

// CreateMessage persists a message and bumps the room's activity counters
// in one transaction. The counter bump is an explicit step here, not a
// storage hook: a failed insert leaves the room row untouched.
func (s *GormStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = domain.MessageKindText
	}

	model := domain.MessageToModel(msg)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.RoomModel{}).
			Where("id = ? AND is_active = ?", msg.RoomID, true).
			Updates(map[string]interface{}{
				"message_count":    gorm.Expr("message_count + 1"),
				"last_activity_at": msg.CreatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		return tx.Create(model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("room %s: %w", msg.RoomID, domain.ErrNotFound)
		}
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("failed to persist message")
		return fmt.Errorf("create message: %w", domain.ErrPersistenceFailed)
	}

	msg.CreatedAt = model.CreatedAt
	return nil
}

// GetMessage retrieves a message with its child rows. Soft-deleted
// messages are reported as not found.
func (s *GormStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var model domain.MessageModel
	result := s.db.WithContext(ctx).
		Preload("AttachmentRows").
		Preload("ReactionRows").
		Preload("ReceiptRows").
		First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListMessages retrieves one page of a room's history, newest first.
// Soft-deleted messages are excluded.
func (s *GormStore) ListMessages(ctx context.Context, roomID string, page, limit int) ([]domain.Message, int64, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := s.db.WithContext(ctx).Model(&domain.MessageModel{}).Where("room_id = ?", roomID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to count messages")
		return nil, 0, err
	}

	var models []domain.MessageModel
	err := query.
		Preload("AttachmentRows").
		Preload("ReactionRows").
		Preload("ReceiptRows").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, 0, err
	}

	messages := make([]domain.Message, len(models))
	for i := range models {
		messages[i] = *models[i].ToDomain()
	}
	return messages, total, nil
}

// SearchMessages searches a room's non-deleted messages by content.
func (s *GormStore) SearchMessages(ctx context.Context, roomID, queryStr string, page, limit int) ([]domain.Message, int64, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	pattern := "%" + queryStr + "%"

	query := s.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID).
		Where("content LIKE ?", pattern)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to count search results")
		return nil, 0, err
	}

	var models []domain.MessageModel
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to search messages")
		return nil, 0, err
	}

	messages := make([]domain.Message, len(models))
	for i := range models {
		messages[i] = *models[i].ToDomain()
	}
	return messages, total, nil
}

// EditMessage replaces a message's body. Only the original sender may edit.
func (s *GormStore) EditMessage(ctx context.Context, id, senderID, content string) (*domain.Message, error) {
	var model domain.MessageModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if model.SenderID != senderID {
		return nil, domain.ErrAccessDenied
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&model).Updates(map[string]interface{}{
		"content":   content,
		"is_edited": true,
		"edited_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("edit message: %w", domain.ErrPersistenceFailed)
	}

	return s.GetMessage(ctx, id)
}

// SoftDeleteMessage marks a message deleted without removing its row.
func (s *GormStore) SoftDeleteMessage(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&domain.MessageModel{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete message: %w", domain.ErrPersistenceFailed)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddReaction appends a reaction row to a message.
func (s *GormStore) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	if _, err := s.GetMessage(ctx, messageID); err != nil {
		return err
	}

	row := &domain.ReactionModel{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("add reaction: %w", domain.ErrPersistenceFailed)
	}
	return nil
}

// MarkMessageRead upserts a read receipt for (message, user). Re-reads
// update the timestamp in place, so a user never has more than one entry.
func (s *GormStore) MarkMessageRead(ctx context.Context, messageID, userID string, at time.Time) error {
	var exists int64
	err := s.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ?", messageID).Count(&exists).Error
	if err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	row := &domain.ReadReceiptModel{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    at,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": at}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("mark message read: %w", domain.ErrPersistenceFailed)
	}
	return nil
}

// MarkRoomRead moves the participant's last-seen marker forward. It never
// moves backwards and is a no-op for non-members.
func (s *GormStore) MarkRoomRead(ctx context.Context, roomID, userID string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&domain.ParticipantModel{}).
		Where("room_id = ? AND user_id = ? AND last_seen_at < ?", roomID, userID, at).
		Update("last_seen_at", at).Error
	if err != nil {
		return fmt.Errorf("mark room read: %w", domain.ErrPersistenceFailed)
	}
	return nil
}

// UpsertParticipant creates or reactivates a membership record. The
// (user, room) pair stays unique; re-joining updates the existing row.
func (s *GormStore) UpsertParticipant(ctx context.Context, p *domain.Participant) error {
	l := log.Ctx(ctx)

	now := time.Now().UTC()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.LastSeenAt.IsZero() {
		p.LastSeenAt = now
	}
	if p.Role == "" {
		p.Role = domain.ParticipantRoleMember
	}
	p.IsActive = true

	model := domain.ParticipantToModel(p)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_active": true,
			"role":      model.Role,
		}),
	}).Create(model).Error
	if err != nil {
		l.Error().Err(err).
			Str(log.FieldUserID, p.UserID).
			Str(log.FieldRoomID, p.RoomID).
			Msg("failed to upsert participant")
		return fmt.Errorf("upsert participant: %w", domain.ErrPersistenceFailed)
	}
	return nil
}

// AddRoomParticipant appends the user to the room's participant list if
// not already present.
func (s *GormStore) AddRoomParticipant(ctx context.Context, roomID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.RoomModel
		if err := tx.First(&model, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if model.Participants.Contains(userID) {
			return nil
		}
		model.Participants = append(model.Participants, userID)
		return tx.Model(&model).Update("participants", model.Participants).Error
	})
}

// FindParticipant retrieves a membership record.
func (s *GormStore) FindParticipant(ctx context.Context, userID, roomID string) (*domain.Participant, error) {
	var model domain.ParticipantModel
	result := s.db.WithContext(ctx).First(&model, "user_id = ? AND room_id = ?", userID, roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// FindUser retrieves a user by ID.
func (s *GormStore) FindUser(ctx context.Context, id string) (*domain.User, error) {
	var model domain.UserModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// CreateUser inserts a user record.
func (s *GormStore) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	model := domain.UserToModel(u)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("create user: %w", domain.ErrPersistenceFailed)
	}
	u.CreatedAt = model.CreatedAt
	return nil
}
