package domain

import (
	"time"

	"github.com/flowdeck/chat-core/pkg/database"
	"gorm.io/gorm"
)

// MessageKind classifies a message.
type MessageKind string

const (
	MessageKindText         MessageKind = "text"
	MessageKindFile         MessageKind = "file"
	MessageKindImage        MessageKind = "image"
	MessageKindSystem       MessageKind = "system"
	MessageKindAnnouncement MessageKind = "announcement"
)

// Attachment is file metadata attached to a message. Object storage itself
// is owned by the surrounding platform; only metadata lives here.
type Attachment struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Reaction is one user's emoji reaction to a message. Reactions are
// additive rows; de-duplication is the caller's concern.
type Reaction struct {
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReadReceipt records that a user has read a message. One entry per user;
// the latest read time wins.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// ReplyPreview is the minimal view of a replied-to message carried on the
// outbound payload. It is resolved at send time and never persisted.
type ReplyPreview struct {
	MessageID  string    `json:"message_id"`
	SenderName string    `json:"sender_name"`
	Snippet    string    `json:"snippet"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is a persisted chat message. Messages are totally ordered within
// a room by creation time; soft-deleted messages stay stored but are
// excluded from reads and search.
type Message struct {
	ID           string        `json:"id"`
	RoomID       string        `json:"room_id"`
	SenderID     string        `json:"sender_id"`
	SenderName   string        `json:"sender_name"`
	Content      string        `json:"content"`
	Kind         MessageKind   `json:"kind"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	ReplyToID    string        `json:"reply_to_id,omitempty"`
	ReplyPreview *ReplyPreview `json:"reply_preview,omitempty"`
	Reactions    []Reaction    `json:"reactions,omitempty"`
	Mentions     []string      `json:"mentions,omitempty"`
	IsEdited     bool          `json:"is_edited"`
	EditedAt     *time.Time    `json:"edited_at,omitempty"`
	ReadBy       []ReadReceipt `json:"read_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Snippet returns a shortened view of the content for reply previews.
func (m *Message) Snippet(max int) string {
	runes := []rune(m.Content)
	if len(runes) <= max {
		return m.Content
	}
	return string(runes[:max]) + "…"
}

// MessageModel is the GORM model for the messages table. DeletedAt carries
// the soft-delete state; GORM excludes soft-deleted rows from queries.
type MessageModel struct {
	ID         string               `gorm:"type:varchar(36);primaryKey"`
	RoomID     string               `gorm:"type:varchar(36);index:idx_room_created;not null"`
	SenderID   string               `gorm:"type:varchar(36);index;not null"`
	SenderName string               `gorm:"type:varchar(100);not null"`
	Content    string               `gorm:"type:text;not null"`
	Kind       string               `gorm:"type:varchar(20);not null;default:'text'"`
	ReplyToID  string               `gorm:"type:varchar(36)"`
	Mentions   database.StringArray `gorm:"type:text"`
	IsEdited   bool                 `gorm:"default:false"`
	EditedAt   *time.Time
	CreatedAt  time.Time      `gorm:"index:idx_room_created;autoCreateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`

	AttachmentRows []AttachmentModel  `gorm:"foreignKey:MessageID"`
	ReactionRows   []ReactionModel    `gorm:"foreignKey:MessageID"`
	ReceiptRows    []ReadReceiptModel `gorm:"foreignKey:MessageID"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// AttachmentModel is the GORM model for message attachments.
type AttachmentModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MessageID string `gorm:"type:varchar(36);index;not null"`
	FileName  string `gorm:"type:varchar(255);not null"`
	URL       string `gorm:"type:text;not null"`
	Size      int64
	MimeType  string `gorm:"type:varchar(100)"`
}

// TableName specifies the table name for AttachmentModel.
func (AttachmentModel) TableName() string {
	return "message_attachments"
}

// ReactionModel is the GORM model for message reactions. Rows are additive;
// edits never rewrite the message document.
type ReactionModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	MessageID string    `gorm:"type:varchar(36);index;not null"`
	UserID    string    `gorm:"type:varchar(36);not null"`
	Emoji     string    `gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ReactionModel.
func (ReactionModel) TableName() string {
	return "message_reactions"
}

// ReadReceiptModel is the GORM model for read receipts. The (message, user)
// pair is unique; re-reads update ReadAt in place.
type ReadReceiptModel struct {
	MessageID string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(36);primaryKey"`
	ReadAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name for ReadReceiptModel.
func (ReadReceiptModel) TableName() string {
	return "message_read_receipts"
}

// ToDomain converts MessageModel to domain Message, including loaded child
// rows.
func (m *MessageModel) ToDomain() *Message {
	msg := &Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Kind:       MessageKind(m.Kind),
		ReplyToID:  m.ReplyToID,
		Mentions:   []string(m.Mentions),
		IsEdited:   m.IsEdited,
		EditedAt:   m.EditedAt,
		CreatedAt:  m.CreatedAt,
	}

	for _, a := range m.AttachmentRows {
		msg.Attachments = append(msg.Attachments, Attachment{
			FileName: a.FileName,
			URL:      a.URL,
			Size:     a.Size,
			MimeType: a.MimeType,
		})
	}
	for _, r := range m.ReactionRows {
		msg.Reactions = append(msg.Reactions, Reaction{
			UserID:    r.UserID,
			Emoji:     r.Emoji,
			CreatedAt: r.CreatedAt,
		})
	}
	for _, rr := range m.ReceiptRows {
		msg.ReadBy = append(msg.ReadBy, ReadReceipt{
			UserID: rr.UserID,
			ReadAt: rr.ReadAt,
		})
	}

	return msg
}

// MessageToModel converts domain Message to MessageModel with child rows.
func MessageToModel(msg *Message) *MessageModel {
	m := &MessageModel{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Kind:       string(msg.Kind),
		ReplyToID:  msg.ReplyToID,
		Mentions:   database.StringArray(msg.Mentions),
		IsEdited:   msg.IsEdited,
		EditedAt:   msg.EditedAt,
		CreatedAt:  msg.CreatedAt,
	}

	for _, a := range msg.Attachments {
		m.AttachmentRows = append(m.AttachmentRows, AttachmentModel{
			MessageID: msg.ID,
			FileName:  a.FileName,
			URL:       a.URL,
			Size:      a.Size,
			MimeType:  a.MimeType,
		})
	}

	return m
}
