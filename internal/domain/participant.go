package domain

import "time"

// ParticipantRole is the role a user holds within one room.
type ParticipantRole string

const (
	ParticipantRoleAdmin     ParticipantRole = "admin"
	ParticipantRoleModerator ParticipantRole = "moderator"
	ParticipantRoleMember    ParticipantRole = "member"
)

// NotificationPrefs holds per-user, per-room notification preferences.
type NotificationPrefs struct {
	OnMention bool `json:"on_mention"`
	OnAll     bool `json:"on_all"`
}

// Participant is a user's membership record in a room, distinct from
// presence. At most one active record exists per (user, room) pair, and
// LastSeenAt only moves forward.
type Participant struct {
	UserID     string            `json:"user_id"`
	RoomID     string            `json:"room_id"`
	Role       ParticipantRole   `json:"role"`
	JoinedAt   time.Time         `json:"joined_at"`
	LastSeenAt time.Time         `json:"last_seen_at"`
	IsActive   bool              `json:"is_active"`
	IsMuted    bool              `json:"is_muted"`
	MutedUntil *time.Time        `json:"muted_until,omitempty"`
	Notify     NotificationPrefs `json:"notify"`
}

// ParticipantModel is the GORM model for the participants table.
type ParticipantModel struct {
	UserID          string `gorm:"type:varchar(36);primaryKey"`
	RoomID          string `gorm:"type:varchar(36);primaryKey;index"`
	Role            string `gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt        time.Time
	LastSeenAt      time.Time
	IsActive        bool `gorm:"index;default:true"`
	IsMuted         bool `gorm:"default:false"`
	MutedUntil      *time.Time
	NotifyOnMention bool `gorm:"default:true"`
	NotifyOnAll     bool `gorm:"default:false"`
}

// TableName specifies the table name for ParticipantModel.
func (ParticipantModel) TableName() string {
	return "participants"
}

// ToDomain converts ParticipantModel to domain Participant.
func (m *ParticipantModel) ToDomain() *Participant {
	return &Participant{
		UserID:     m.UserID,
		RoomID:     m.RoomID,
		Role:       ParticipantRole(m.Role),
		JoinedAt:   m.JoinedAt,
		LastSeenAt: m.LastSeenAt,
		IsActive:   m.IsActive,
		IsMuted:    m.IsMuted,
		MutedUntil: m.MutedUntil,
		Notify: NotificationPrefs{
			OnMention: m.NotifyOnMention,
			OnAll:     m.NotifyOnAll,
		},
	}
}

// ParticipantToModel converts domain Participant to ParticipantModel.
func ParticipantToModel(p *Participant) *ParticipantModel {
	return &ParticipantModel{
		UserID:          p.UserID,
		RoomID:          p.RoomID,
		Role:            string(p.Role),
		JoinedAt:        p.JoinedAt,
		LastSeenAt:      p.LastSeenAt,
		IsActive:        p.IsActive,
		IsMuted:         p.IsMuted,
		MutedUntil:      p.MutedUntil,
		NotifyOnMention: p.Notify.OnMention,
		NotifyOnAll:     p.Notify.OnAll,
	}
}
