package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/chat"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/repo"
)

func newTestEngine(t *testing.T) *chat.Engine {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "tui.db"), false)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	e := chat.New(chat.Options{
		Store:         repo.NewStore(db),
		SenderID:      "sender-1",
		ClientID:      "client-1",
		Source:        "landing_page",
		PageSize:      10,
		FallbackDelay: time.Second,
		PendingDelay:  time.Second,
	})
	t.Cleanup(e.Close)
	return e
}

func TestOpDoneShowsErrorInStatusLine(t *testing.T) {
	m := newModel(newTestEngine(t))

	next, _ := m.Update(opDoneMsg{err: errors.New("kirim gagal")})
	m = next.(model)
	if m.lastErr != "kirim gagal" {
		t.Fatalf("lastErr = %q, want the operation error", m.lastErr)
	}

	next, _ = m.Update(opDoneMsg{})
	m = next.(model)
	if m.lastErr != "" {
		t.Fatalf("lastErr = %q, want cleared after success", m.lastErr)
	}
}

func TestRatingFailureStaysOffStatusLine(t *testing.T) {
	m := newModel(newTestEngine(t))
	m.mode = modeComment
	m.rating = domain.FeedbackLike
	m.rateTargetID = "no-such-message"

	next, cmd := m.submitRating("")
	m = next.(model)
	if m.mode != modeCompose {
		t.Fatal("comment prompt should close regardless of outcome")
	}

	msg := cmd()
	done, ok := msg.(opDoneMsg)
	if !ok {
		t.Fatalf("unexpected msg type %T", msg)
	}
	if done.err == nil {
		t.Fatal("expected an error rating a missing message")
	}
	if !done.silent {
		t.Fatal("rating results must be silent")
	}

	next, _ = m.Update(done)
	m = next.(model)
	if m.lastErr != "" {
		t.Fatalf("lastErr = %q, want feedback failures kept out of the status line", m.lastErr)
	}
}

func TestRenderMessagesFeedbackNote(t *testing.T) {
	comment := "mantap"
	rating := domain.FeedbackLike
	msgs := []domain.ChatMessage{{
		ID:        "msg-001",
		Role:      domain.RoleAgent,
		Message:   "halo",
		Feedback:  &rating,
		CreatedAt: time.Now(),
	}}
	msgs[0].FeedbackText = &comment

	out := renderMessages(msgs, 80)
	if !strings.Contains(out, "suka - mantap") {
		t.Fatalf("feedback note missing plain separator:\n%s", out)
	}
	if strings.Contains(out, "—") {
		t.Fatalf("rendered transcript contains an em dash:\n%s", out)
	}
}
