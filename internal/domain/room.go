package domain

import (
	"time"

	"github.com/flowdeck/chat-core/pkg/database"
	"gorm.io/gorm"
)

// RoomKind classifies a room.
type RoomKind string

const (
	RoomKindGeneral      RoomKind = "general"
	RoomKindDepartment   RoomKind = "department"
	RoomKindProject      RoomKind = "project"
	RoomKindPrivate      RoomKind = "private"
	RoomKindAnnouncement RoomKind = "announcement"
)

// RoomSettings holds retention and sharing configuration for a room.
type RoomSettings struct {
	MaxMembers        int  `json:"max_members"`
	AllowFileSharing  bool `json:"allow_file_sharing"`
	AllowGuestMessage bool `json:"allow_guest_message"`
	RetentionDays     int  `json:"retention_days"`
}

// Room is a named channel grouping participants and messages.
//
// MessageCount and LastActivityAt are monotonically non-decreasing and are
// bumped exactly once per successfully persisted, non-deleted message.
type Room struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Kind           RoomKind     `json:"kind"`
	IsActive       bool         `json:"is_active"`
	Participants   []string     `json:"participants"`
	Admins         []string     `json:"admins"`
	AllowedRoles   []string     `json:"allowed_roles"`
	CreatedBy      string       `json:"created_by"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	MessageCount   int64        `json:"message_count"`
	Settings       RoomSettings `json:"settings"`
	CreatedAt      time.Time    `json:"created_at"`
}

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID                string               `gorm:"type:varchar(36);primaryKey"`
	Name              string               `gorm:"type:varchar(200);not null"`
	Description       string               `gorm:"type:text"`
	Kind              string               `gorm:"type:varchar(20);index;not null;default:'general'"`
	IsActive          bool                 `gorm:"index;default:true"`
	Participants      database.StringArray `gorm:"type:text"`
	Admins            database.StringArray `gorm:"type:text"`
	AllowedRoles      database.StringArray `gorm:"type:text"`
	CreatedBy         string               `gorm:"type:varchar(36);index;not null"`
	LastActivityAt    time.Time
	MessageCount      int64     `gorm:"default:0"`
	MaxMembers        int       `gorm:"default:0"`
	AllowFileSharing  bool      `gorm:"default:true"`
	AllowGuestMessage bool      `gorm:"default:false"`
	RetentionDays     int       `gorm:"default:0"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		Kind:           RoomKind(m.Kind),
		IsActive:       m.IsActive,
		Participants:   []string(m.Participants),
		Admins:         []string(m.Admins),
		AllowedRoles:   []string(m.AllowedRoles),
		CreatedBy:      m.CreatedBy,
		LastActivityAt: m.LastActivityAt,
		MessageCount:   m.MessageCount,
		Settings: RoomSettings{
			MaxMembers:        m.MaxMembers,
			AllowFileSharing:  m.AllowFileSharing,
			AllowGuestMessage: m.AllowGuestMessage,
			RetentionDays:     m.RetentionDays,
		},
		CreatedAt: m.CreatedAt,
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		Kind:              string(r.Kind),
		IsActive:          r.IsActive,
		Participants:      database.StringArray(r.Participants),
		Admins:            database.StringArray(r.Admins),
		AllowedRoles:      database.StringArray(r.AllowedRoles),
		CreatedBy:         r.CreatedBy,
		LastActivityAt:    r.LastActivityAt,
		MessageCount:      r.MessageCount,
		MaxMembers:        r.Settings.MaxMembers,
		AllowFileSharing:  r.Settings.AllowFileSharing,
		AllowGuestMessage: r.Settings.AllowGuestMessage,
		RetentionDays:     r.Settings.RetentionDays,
		CreatedAt:         r.CreatedAt,
	}
}

// IsAdmin reports whether the user administers this room.
func (r *Room) IsAdmin(userID string) bool {
	for _, id := range r.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// RoleAllowed reports whether the role grants access without membership.
func (r *Room) RoleAllowed(role string) bool {
	for _, allowed := range r.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}
