// Package repo implements the durable-store contract for chat sessions and
// messages. This file bundles the repository functions and the notification
// hub into one handle satisfying the engine's store interface.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// Store is the concrete durable store handed to the synchronization engine
// and to agentd. It pairs a GORM handle with the insert notifier so every
// write through it also feeds the push channel.
type Store struct {
	DB       *gorm.DB
	Notifier *Notifier
}

// NewStore wraps db with a fresh notification hub.
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, Notifier: NewNotifier()}
}

// FindOpenSession proxies FindOpenSession.
func (s *Store) FindOpenSession(ctx context.Context, senderID, clientID, source string) (*domain.ChatSession, error) {
	return FindOpenSession(ctx, s.DB, senderID, clientID, source)
}

// CreateSession proxies CreateSession.
func (s *Store) CreateSession(ctx context.Context, senderID, clientID, source string) (*domain.ChatSession, error) {
	return CreateSession(ctx, s.DB, senderID, clientID, source)
}

// ListMessagesPage proxies ListMessagesPage.
func (s *Store) ListMessagesPage(ctx context.Context, sessionID string, offset, limit int) ([]domain.ChatMessage, error) {
	return ListMessagesPage(ctx, s.DB, sessionID, offset, limit)
}

// LatestMessages proxies LatestMessages.
func (s *Store) LatestMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	return LatestMessages(ctx, s.DB, sessionID, limit)
}

// InsertMessage persists a message and publishes it on the push channel.
func (s *Store) InsertMessage(ctx context.Context, clientID, sessionID, role, text string) (*domain.ChatMessage, error) {
	m, err := InsertMessage(ctx, s.DB, clientID, sessionID, role, text)
	if err != nil {
		return nil, err
	}
	s.Notifier.Publish(*m)
	return m, nil
}

// UpdateFeedback proxies UpdateFeedback.
func (s *Store) UpdateFeedback(ctx context.Context, messageID, feedback string, text *string) error {
	return UpdateFeedback(ctx, s.DB, messageID, feedback, text)
}

// SubscribeInserts registers for insert notifications for one session.
func (s *Store) SubscribeInserts(sessionID string) (<-chan domain.ChatMessage, func()) {
	return s.Notifier.Subscribe(sessionID)
}
