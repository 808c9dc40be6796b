// Package domain defines the persistence models for chat sessions and
// messages. These types are mapped with GORM and mirror the remote table
// layout the synchronizer keeps its local view consistent with.
package domain

import (
	"time"
)

// Author roles for ChatMessage.Role.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Session lifecycle states. Only the in-progress state is ever written by
// this client; closing a session is a store-side transition.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusClosed     = "CLOSED"
)

// Feedback ratings for ChatMessage.Feedback.
const (
	FeedbackLike    = "like"
	FeedbackDislike = "dislike"
)

// ChatSession groups messages into one continuous conversation for a single
// sender. At most one IN_PROGRESS session may exist per
// (sender_id, client_id, source) triple; the store enforces this with a
// partial unique index (see repo.AutoMigrate).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ClientID: owning tenant/client key.
//   - SenderID: opaque identity of the local participant (see identity pkg).
//   - Source: origin tag for the conversation surface (e.g. "landing_page").
//   - Status: IN_PROGRESS or CLOSED; transitions happen store-side.
//   - TotalMessages: message counter maintained externally.
type ChatSession struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ClientID      string    `json:"client_id"      gorm:"type:char(36);not null;index:idx_client_sessions"`
	SenderID      string    `json:"sender_id"      gorm:"type:char(36);not null;index:idx_sender_sessions"`
	Source        string    `json:"source"         gorm:"type:varchar(64);not null;default:'landing_page'"`
	Status        string    `json:"status"         gorm:"type:varchar(16);not null;check:status IN ('IN_PROGRESS','CLOSED')"`
	TotalMessages int       `json:"total_messages" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "dt_chat_sessions" }

// ChatMessage is the atomic conversational unit. Rows are authored either by
// the local user or by the automated agent; after creation only the feedback
// columns are ever mutated, and rows are never deleted.
//
// Fields:
//   - ID: UUID primary key, assigned on persist. Locally struck fallback
//     entries that were never persisted carry a "local-" prefixed key.
//   - ClientID / SessionID: owning tenant and conversation.
//   - Role: "user" or "agent" (enforced by DB constraint).
//   - Message: text body.
//   - Feedback / FeedbackText: optional rating overlay, nil until rated.
//   - CreatedAt: store-assigned creation time; the total order of a session.
type ChatMessage struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ClientID     string    `json:"client_id"     gorm:"type:char(36);not null"`
	SessionID    string    `json:"session_id"    gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Role         string    `json:"role"          gorm:"type:varchar(16);not null;check:role IN ('user','agent')"`
	Message      string    `json:"message"       gorm:"type:text;not null"`
	Feedback     *string   `json:"feedback,omitempty"      gorm:"type:varchar(16)"`
	FeedbackText *string   `json:"feedback_text,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index:idx_session_msgs,priority:2"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Session is the parent conversation. Messages are cascade-deleted if
	// their session is removed store-side.
	Session ChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "dt_lp_chat_messages" }

// IsAgent reports whether the message was authored by the automated agent.
func (m *ChatMessage) IsAgent() bool { return m.Role == RoleAgent }

// ValidFeedback reports whether v is an accepted rating value.
func ValidFeedback(v string) bool {
	return v == FeedbackLike || v == FeedbackDislike
}
