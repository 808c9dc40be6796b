// Package repo implements the durable-store contract for chat sessions and
// messages, backed by GORM. This file provides repository functions for the
// ChatSession model.
//
// Error semantics:
//   - When no open session exists, FindOpenSession returns ErrNotFound.
//   - When a concurrent creation trips the partial unique index,
//     CreateSession returns ErrDuplicateSession; callers are expected to
//     re-query instead of treating it as fatal.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the engine and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateSession is returned when creating an IN_PROGRESS session loses
// a race against another writer. This is an expected, recoverable outcome.
var ErrDuplicateSession = errors.New("open session already exists")

// FindOpenSession returns the newest IN_PROGRESS session for the given
// (sender, client, source) triple, or ErrNotFound if none exists.
func FindOpenSession(ctx context.Context, db *gorm.DB, senderID, clientID, source string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("sender_id = ? AND client_id = ? AND source = ? AND status = ?",
			senderID, clientID, source, domain.StatusInProgress).
		Order("created_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new IN_PROGRESS session with a zero message counter.
// A uniqueness violation on the open-session index is mapped to
// ErrDuplicateSession so the caller can recover by re-querying.
func CreateSession(ctx context.Context, db *gorm.DB, senderID, clientID, source string) (*domain.ChatSession, error) {
	s := &domain.ChatSession{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		SenderID:      senderID,
		Source:        source,
		Status:        domain.StatusInProgress,
		TotalMessages: 0,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return nil, ErrDuplicateSession
		}
		return nil, err
	}
	return s, nil
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
