// Package repo implements the durable-store contract for chat sessions and
// messages, backed by GORM. This file provides repository functions for the
// ChatMessage model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// InsertMessage persists a new message row and returns it with its
// store-assigned key and timestamp.
func InsertMessage(ctx context.Context, db *gorm.DB, clientID, sessionID, role, text string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		SessionID: sessionID,
		Role:      role,
		Message:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessagesPage returns a page of messages for a session ordered newest
// first (CreatedAt DESC, ID DESC as tiebreak), starting at offset.
func ListMessagesPage(ctx context.Context, db *gorm.DB, sessionID string, offset, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LatestMessages returns the newest window of messages for a session, newest
// first, with no offset. Used by the reconciliation fallback.
func LatestMessages(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]domain.ChatMessage, error) {
	return ListMessagesPage(ctx, db, sessionID, 0, limit)
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM dt_lp_chat_messages WHERE session_id = ?", sessionID).
		Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ChatMessage, error) {
	var m domain.ChatMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateFeedback sets the rating and optional free-text comment on a message.
// No other column is touched. Returns ErrNotFound when the message does not
// exist.
func UpdateFeedback(ctx context.Context, db *gorm.DB, messageID, feedback string, text *string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"feedback":      feedback,
			"feedback_text": text,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
