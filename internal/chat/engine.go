// Package chat – Engine
//
// The Engine owns the local ordered view of one conversation and keeps it
// consistent with the durable store while the user and the automated
// responder exchange messages. All shared state (buffer, cached session key,
// guard flags, timers) lives behind one mutex; the public operations are the
// named transitions of the synchronizer and are safe to call from any
// goroutine:
//
//   - ResolveSession: find-or-create the single open session, collapsing
//     concurrent callers into one store round-trip.
//   - LoadPage: paginated reverse-chronological history fetch.
//   - SendMessage: persist, optimistic append, signed webhook dispatch,
//     apology recovery.
//   - Rate: feedback overlay on a historical entry.
//   - Start/Close: push subscription lifecycle.
//
// Observability: the user-facing operations are OpenTelemetry-instrumented.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/repo"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/webhook"
)

const (
	defaultPageSize      = 10
	defaultFallbackDelay = 5 * time.Second
	defaultPendingDelay  = 300 * time.Millisecond

	// sendApology is shown when the send flow itself fails.
	sendApology = "Mohon maaf, terjadi kesalahan dalam mengirim pesan. Silakan coba lagi."
	// serverApology is shown when the endpoint fails without an error body.
	serverApology = "Mohon maaf terjadi kesalahan pada server kami."
)

// Store is the durable-store contract the engine depends on. repo.Store is
// the production implementation; tests wrap it to count or fail calls.
type Store interface {
	FindOpenSession(ctx context.Context, senderID, clientID, source string) (*domain.ChatSession, error)
	CreateSession(ctx context.Context, senderID, clientID, source string) (*domain.ChatSession, error)
	ListMessagesPage(ctx context.Context, sessionID string, offset, limit int) ([]domain.ChatMessage, error)
	LatestMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	InsertMessage(ctx context.Context, clientID, sessionID, role, text string) (*domain.ChatMessage, error)
	UpdateFeedback(ctx context.Context, messageID, feedback string, text *string) error
	SubscribeInserts(sessionID string) (<-chan domain.ChatMessage, func())
}

// Options configures an Engine. Store, SenderID and ClientID are required;
// everything else has a sensible default.
type Options struct {
	Store    Store
	Webhook  *webhook.Client // nil or unconfigured disables dispatch
	SenderID string
	ClientID string
	Source   string

	PageSize      int           // history page / reconcile window size
	FallbackDelay time.Duration // reconcile deadline after a successful send
	PendingDelay  time.Duration // debounce before the waiting indicator shows

	Logger   *zerolog.Logger // nil uses the global logger
	OnChange func()          // invoked after every observable state change
}

// Engine synchronizes the local message buffer with the store.
type Engine struct {
	store    Store
	hook     *webhook.Client
	senderID string
	clientID string
	source   string

	pageSize      int
	fallbackDelay time.Duration
	pendingDelay  time.Duration

	log      zerolog.Logger
	onChange func()

	mu sync.Mutex

	sessionID   string
	resolving   bool
	resolveDone chan struct{}
	resolveErr  error

	buffer  []domain.ChatMessage
	offset  int
	hasMore bool
	loading bool

	pending       bool
	pendingTimer  *time.Timer
	fallbackTimer *time.Timer

	subscribed bool
	subCancel  func()
	closed     bool
}

// New constructs an Engine from opts.
func New(opts Options) *Engine {
	e := &Engine{
		store:         opts.Store,
		hook:          opts.Webhook,
		senderID:      opts.SenderID,
		clientID:      opts.ClientID,
		source:        opts.Source,
		pageSize:      opts.PageSize,
		fallbackDelay: opts.FallbackDelay,
		pendingDelay:  opts.PendingDelay,
		onChange:      opts.OnChange,
		hasMore:       true,
	}
	if e.source == "" {
		e.source = "landing_page"
	}
	if e.pageSize <= 0 {
		e.pageSize = defaultPageSize
	}
	if e.fallbackDelay <= 0 {
		e.fallbackDelay = defaultFallbackDelay
	}
	if e.pendingDelay < 0 {
		e.pendingDelay = defaultPendingDelay
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	} else {
		e.log = log.Logger
	}
	return e
}

// ResolveSession returns the session key for this conversation, creating the
// session if needed. The result is cached for the engine's lifetime, and
// concurrent callers share one in-flight resolution rather than racing to
// create duplicate sessions.
func (e *Engine) ResolveSession(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}
	if e.sessionID != "" {
		id := e.sessionID
		e.mu.Unlock()
		return id, nil
	}
	if e.resolving {
		done := e.resolveDone
		e.mu.Unlock()
		select {
		case <-done:
			e.mu.Lock()
			id, err := e.sessionID, e.resolveErr
			e.mu.Unlock()
			if id != "" {
				return id, nil
			}
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	e.resolving = true
	e.resolveDone = make(chan struct{})
	e.mu.Unlock()

	id, err := e.resolveOnce(ctx)

	e.mu.Lock()
	if err == nil {
		e.sessionID = id
	}
	e.resolveErr = err
	close(e.resolveDone)
	e.resolving = false
	e.mu.Unlock()

	if err != nil {
		e.log.Error().Err(err).Msg("session resolution failed")
	}
	return id, err
}

// resolveOnce performs one lookup / create / conflict-requery cycle.
func (e *Engine) resolveOnce(ctx context.Context) (string, error) {
	s, err := e.store.FindOpenSession(ctx, e.senderID, e.clientID, e.source)
	if err == nil {
		return s.ID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}

	created, err := e.store.CreateSession(ctx, e.senderID, e.clientID, e.source)
	if err == nil {
		e.log.Info().Str("session_id", created.ID).Msg("created new session")
		return created.ID, nil
	}
	if errors.Is(err, repo.ErrDuplicateSession) {
		// Lost the race; the open session now exists, use it.
		existing, ferr := e.store.FindOpenSession(ctx, e.senderID, e.clientID, e.source)
		if ferr != nil {
			return "", ferr
		}
		return existing.ID, nil
	}
	return "", err
}

// LoadPage fetches one page of history. initial=true replaces the buffer
// wholesale and resets pagination; initial=false prepends older messages
// ahead of the current buffer. A call made while another load is outstanding
// is ignored, so scroll-triggered backfill cannot overlap itself.
func (e *Engine) LoadPage(ctx context.Context, initial bool) error {
	tr := otel.Tracer("chat/Engine")
	ctx, span := tr.Start(ctx, "LoadPage",
		trace.WithAttributes(attribute.Bool("initial", initial)),
	)
	defer span.End()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.loading {
		e.mu.Unlock()
		return nil
	}
	if !initial && !e.hasMore {
		e.mu.Unlock()
		return nil
	}
	e.loading = true
	offset := 0
	if !initial {
		offset = e.offset
	}
	e.mu.Unlock()

	sessionID, err := e.ResolveSession(ctx)
	if err != nil {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
		return err
	}

	page, err := e.store.ListMessagesPage(ctx, sessionID, offset, e.pageSize)

	e.mu.Lock()
	e.loading = false
	if err != nil {
		e.mu.Unlock()
		e.log.Error().Err(err).Int("offset", offset).Msg("history load failed")
		return err
	}
	chron := chronological(page)
	if initial {
		e.buffer = chron
		e.offset = len(page)
	} else {
		e.buffer = mergeOrdered(e.buffer, chron...)
		e.offset += len(page)
	}
	e.hasMore = len(page) == e.pageSize
	e.mu.Unlock()

	e.notifyChange()
	return nil
}

// SendMessage persists a user message, appends it to the buffer as soon as
// the write acknowledges, and forwards it to the automation endpoint when one
// is configured. Endpoint and transport failures are recovered by persisting
// a visible apology message; the returned error is non-nil only when the user
// message itself could not be handled.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	tr := otel.Tracer("chat/Engine")
	ctx, span := tr.Start(ctx, "SendMessage")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()

	sessionID, err := e.ResolveSession(ctx)
	if err != nil {
		e.recoverSendFailure(ctx, err)
		return err
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	msg, err := e.store.InsertMessage(ctx, e.clientID, sessionID, domain.RoleUser, text)
	if err != nil {
		e.recoverSendFailure(ctx, err)
		return err
	}
	e.applyInsert(*msg)
	e.armPending()

	if !e.hook.Configured() {
		e.log.Warn().Msg("webhook not configured; message stays local")
		e.disarmPending()
		return nil
	}

	replies, err := e.hook.Send(ctx, webhook.Payload{
		SenderID:  e.senderID,
		SessionID: sessionID,
		ClientID:  e.clientID,
		Role:      domain.RoleUser,
		Message:   text,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	})

	switch {
	case err == nil && len(replies) > 0:
		// Synchronous reply batch: persist and apply immediately, no
		// waiting indicator and no fallback needed.
		e.disarmPending()
		for _, r := range replies {
			m, ierr := e.store.InsertMessage(ctx, e.clientID, sessionID, domain.RoleAgent, r.Message)
			if ierr != nil {
				e.log.Error().Err(ierr).Msg("persisting synchronous reply failed")
				e.armFallback()
				break
			}
			e.applyInsert(*m)
		}

	case err == nil:
		// Acknowledged without replies: the agent answer arrives via push,
		// with the fallback re-fetch as the safety net.
		e.armFallback()

	default:
		var se *webhook.StatusError
		switch {
		case errors.As(err, &se):
			e.log.Error().Int("status", se.Code).Msg("webhook rejected message")
			apology := se.Body
			if apology == "" {
				apology = serverApology
			}
			e.disarmPending()
			e.persistApology(ctx, sessionID, apology)
			e.reconcile(ctx)
		case errors.Is(err, webhook.ErrNotConfigured):
			e.disarmPending()
		default:
			e.log.Error().Err(err).Msg("webhook call failed")
			e.disarmPending()
			if e.persistApology(ctx, sessionID, sendApology) {
				e.reconcile(ctx)
			}
		}
	}
	return nil
}

// recoverSendFailure keeps the UI honest when the send flow dies before the
// webhook stage: the pending indicator is cleared and the user always ends up
// with a visible agent-style response, persisted if at all possible.
func (e *Engine) recoverSendFailure(ctx context.Context, cause error) {
	e.log.Error().Err(cause).Msg("send failed")
	e.disarmPending()

	e.mu.Lock()
	sessionID := e.sessionID
	e.mu.Unlock()

	if sessionID != "" && e.persistApology(ctx, sessionID, sendApology) {
		e.reconcile(ctx)
		return
	}
	e.appendLocalApology(sessionID)
}

// persistApology inserts an agent-authored apology row and applies it to the
// buffer. Returns false when even that write failed.
func (e *Engine) persistApology(ctx context.Context, sessionID, text string) bool {
	m, err := e.store.InsertMessage(ctx, e.clientID, sessionID, domain.RoleAgent, text)
	if err != nil {
		e.log.Error().Err(err).Msg("persisting apology failed")
		return false
	}
	e.applyInsert(*m)
	return true
}

// appendLocalApology adds an unpersisted, locally keyed apology entry so the
// user is never left without a response to their message.
func (e *Engine) appendLocalApology(sessionID string) {
	e.applyInsert(domain.ChatMessage{
		ID:        "local-" + uuid.NewString(),
		ClientID:  e.clientID,
		SessionID: sessionID,
		Role:      domain.RoleAgent,
		Message:   sendApology,
		CreatedAt: time.Now().UTC(),
	})
}

// applyInsert merges one message into the buffer.
func (e *Engine) applyInsert(m domain.ChatMessage) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.buffer = mergeOrdered(e.buffer, m)
	e.mu.Unlock()
	e.notifyChange()
}

// onPushInsert handles one insert notification from the push channel.
// Already-present keys are discarded; a merged agent message clears the
// waiting indicator. The fallback timer is deliberately left armed: its
// refresh is an idempotent re-read, not worth optimizing away.
func (e *Engine) onPushInsert(m domain.ChatMessage) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if containsID(e.buffer, m.ID) {
		e.mu.Unlock()
		return
	}
	e.buffer = mergeOrdered(e.buffer, m)
	agent := m.IsAgent()
	e.mu.Unlock()

	if agent {
		e.disarmPending()
	}
	e.notifyChange()
}

// armPending schedules the waiting indicator after the debounce delay, so a
// near-instant reply never causes a flicker.
func (e *Engine) armPending() {
	e.mu.Lock()
	if e.pendingTimer != nil {
		e.pendingTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(e.pendingDelay, func() {
		e.mu.Lock()
		if e.closed || e.pendingTimer != t {
			e.mu.Unlock()
			return
		}
		e.pending = true
		e.mu.Unlock()
		e.notifyChange()
	})
	e.pendingTimer = t
	e.mu.Unlock()
}

// disarmPending cancels the debounce and clears the waiting indicator.
func (e *Engine) disarmPending() {
	e.mu.Lock()
	if e.pendingTimer != nil {
		e.pendingTimer.Stop()
		e.pendingTimer = nil
	}
	changed := e.pending
	e.pending = false
	e.mu.Unlock()
	if changed {
		e.notifyChange()
	}
}

// armFallback schedules the reconciliation deadline for the most recent send.
// A newer send replaces the previous deadline rather than racing it.
func (e *Engine) armFallback() {
	e.mu.Lock()
	if e.fallbackTimer != nil {
		e.fallbackTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(e.fallbackDelay, func() { e.onFallbackDeadline(t) })
	e.fallbackTimer = t
	e.mu.Unlock()
}

// onFallbackDeadline re-fetches the latest window and unconditionally clears
// the waiting indicator. Whatever the push channel did or did not deliver,
// the waiting state cannot outlive this deadline.
func (e *Engine) onFallbackDeadline(t *time.Timer) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.fallbackTimer == t {
		e.fallbackTimer = nil
	}
	e.mu.Unlock()

	e.log.Debug().Msg("fallback deadline reached; refreshing latest window")
	e.reconcile(context.Background())
	e.disarmPending()
}

// reconcile fetches the newest window for the session and merges it into the
// buffer by key. Entries inside the window reflect the store's truth; older
// backfilled entries and a concurrently sent tail survive untouched.
func (e *Engine) reconcile(ctx context.Context) {
	e.mu.Lock()
	sessionID := e.sessionID
	e.mu.Unlock()
	if sessionID == "" {
		return
	}

	window, err := e.store.LatestMessages(ctx, sessionID, e.pageSize)
	if err != nil {
		e.log.Error().Err(err).Msg("reconcile fetch failed")
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.buffer = mergeOrdered(e.buffer, chronological(window)...)
	if e.offset <= len(window) {
		e.offset = len(window)
		e.hasMore = len(window) == e.pageSize
	}
	e.mu.Unlock()

	e.notifyChange()
}

// Rate writes a rating and optional comment to the store, then mirrors the
// same two fields onto the matching buffer entry without touching anything
// else. An empty comment is equivalent to skipping the comment step.
func (e *Engine) Rate(ctx context.Context, messageID, rating, comment string) error {
	tr := otel.Tracer("chat/Engine")
	ctx, span := tr.Start(ctx, "Rate",
		trace.WithAttributes(attribute.String("message.id", messageID)),
	)
	defer span.End()

	if !domain.ValidFeedback(rating) {
		return ErrInvalidFeedback
	}
	var text *string
	if t := strings.TrimSpace(comment); t != "" {
		text = &t
	}

	if err := e.store.UpdateFeedback(ctx, messageID, rating, text); err != nil {
		e.log.Error().Err(err).Str("message_id", messageID).Msg("feedback write failed")
		return err
	}

	e.mu.Lock()
	if i := indexOf(e.buffer, messageID); i >= 0 {
		r := rating
		e.buffer[i].Feedback = &r
		e.buffer[i].FeedbackText = text
	}
	e.mu.Unlock()

	e.notifyChange()
	return nil
}

// Start resolves the session and establishes the push subscription. Repeated
// calls are no-ops; at most one subscription exists per engine.
func (e *Engine) Start(ctx context.Context) error {
	sessionID, err := e.ResolveSession(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.subscribed {
		e.mu.Unlock()
		return nil
	}
	ch, cancel := e.store.SubscribeInserts(sessionID)
	e.subscribed = true
	e.subCancel = cancel
	e.mu.Unlock()

	go func() {
		for m := range ch {
			e.onPushInsert(m)
		}
	}()
	return nil
}

// Close tears down the subscription and timers. In-flight store calls are
// left to complete; their results are discarded against the closed engine.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel := e.subCancel
	if e.pendingTimer != nil {
		e.pendingTimer.Stop()
		e.pendingTimer = nil
	}
	if e.fallbackTimer != nil {
		e.fallbackTimer.Stop()
		e.fallbackTimer = nil
	}
	e.pending = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Messages returns a copy of the ordered local buffer.
func (e *Engine) Messages() []domain.ChatMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ChatMessage, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// Pending reports whether a sent message is still awaiting an agent reply.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// HasMore reports whether older history pages may exist.
func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}

// Loading reports whether a history load is outstanding.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// SessionID returns the cached session key, or "" before resolution.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// SetOnChange replaces the change callback. The UI program is typically
// constructed after the engine, so the callback is registered late.
func (e *Engine) SetOnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) notifyChange() {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}
