package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/http/middleware"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/webhook"
)

// maxWebhookBody caps how much of the request body is read before signature
// verification.
const maxWebhookBody = 1 << 20 // 1 MiB

// MessageStore is the persistence surface the webhook handler needs in
// asynchronous mode, where agent replies are written to the shared store
// instead of being returned inline.
type MessageStore interface {
	InsertMessage(ctx context.Context, clientID, sessionID, role, text string) (*domain.ChatMessage, error)
}

// Responder produces the agent reply text for an incoming user message.
// The default responder is a canned echo; deployments replace it with a
// real agent integration.
type Responder func(ctx context.Context, p webhook.Payload) string

// DefaultResponder is the built-in canned agent used when no external agent
// is configured.
func DefaultResponder(_ context.Context, p webhook.Payload) string {
	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		return "Halo! Ada yang bisa kami bantu?"
	}
	return fmt.Sprintf("Terima kasih atas pesan Anda: %q. Tim kami akan segera membantu.", msg)
}

// WebhookHandler serves POST /webhook: it authenticates the caller via the
// shared API key and HMAC signature, parses the message payload, and either
// returns the agent reply inline (sync mode) or persists it to the store for
// delivery over the push channel (async mode).
type WebhookHandler struct {
	APIKey  string
	Secret  string
	Sync    bool
	Store   MessageStore
	Respond Responder

	// AsyncDelay staggers the store write in async mode so the reply lands
	// after the sender's acknowledgment, like a real out-of-band agent.
	AsyncDelay time.Duration
}

// Handle implements the endpoint.
func (h *WebhookHandler) Handle(c *gin.Context) {
	l := middleware.LoggerFrom(c)

	if h.APIKey != "" {
		got := c.GetHeader(webhook.HeaderAPIKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.APIKey)) != 1 {
			l.Warn().Msg("webhook rejected: bad api key")
			fail(c, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		fail(c, http.StatusBadRequest, codeBadRequest, "unreadable body")
		return
	}

	if h.Secret != "" {
		sig := c.GetHeader(webhook.HeaderSignature)
		if !webhook.VerifySignature(h.Secret, body, sig) {
			l.Warn().Msg("webhook rejected: bad signature")
			fail(c, http.StatusUnauthorized, codeInvalidSignature, "invalid signature")
			return
		}
	}

	var p webhook.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		fail(c, http.StatusBadRequest, codeBadRequest, "malformed payload")
		return
	}
	if p.SessionID == "" || p.Message == "" {
		fail(c, http.StatusBadRequest, codeBadRequest, "session_id and message are required")
		return
	}

	respond := h.Respond
	if respond == nil {
		respond = DefaultResponder
	}
	reply := respond(c.Request.Context(), p)

	if h.Sync {
		l.Info().Str("session_id", p.SessionID).Msg("webhook answered inline")
		ok(c, []webhook.Reply{{
			Message:   reply,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}})
		return
	}

	// Async mode: acknowledge now, persist the reply out of band.
	go h.deliver(p, reply, l)
	l.Info().Str("session_id", p.SessionID).Msg("webhook acknowledged, replying async")
	ok(c, gin.H{"status": "ok"})
}

// deliver persists an async agent reply to the shared store.
func (h *WebhookHandler) deliver(p webhook.Payload, reply string, l *zerolog.Logger) {
	if h.Store == nil {
		l.Warn().Msg("async mode without a store, dropping reply")
		return
	}
	if h.AsyncDelay > 0 {
		time.Sleep(h.AsyncDelay)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.Store.InsertMessage(ctx, p.ClientID, p.SessionID, domain.RoleAgent, reply); err != nil {
		l.Error().Err(err).Str("session_id", p.SessionID).Msg("failed to persist async reply")
	}
}
