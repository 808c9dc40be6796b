// Command talkvera is the terminal chat client. It resolves (or creates) the
// visitor's open session, loads history a page at a time, sends messages to
// the agent webhook, and keeps the transcript consistent via push
// notifications with a timed reconcile fallback.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/chat"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/config"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/identity"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/observability"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/repo"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/sysutil"
	"github.com/fikricghuv/chat-talkvera-iframe/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "talkvera:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ident := identity.Provider{Dir: cfg.StateDir}
	if ident.Dir == "" {
		ident.Dir = identity.DefaultDir()
	}

	// The terminal belongs to the UI; logs go to a file next to the state.
	logPath := filepath.Join(ident.Dir, "talkvera.log")
	_ = os.MkdirAll(ident.Dir, 0o700)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	sysutil.SetupLogging(cfg.LogLevel, false, logFile)

	senderID := ident.GetOrCreate()

	ctx := context.Background()

	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	db, err := repo.Open(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()
	store := repo.NewStore(db)

	hook := webhook.New(cfg.Webhook.URL, cfg.Webhook.APIKey, cfg.Webhook.Secret, cfg.Webhook.Timeout)

	engine := chat.New(chat.Options{
		Store:         store,
		Webhook:       hook,
		SenderID:      senderID,
		ClientID:      cfg.ClientID,
		Source:        cfg.Source,
		PageSize:      cfg.PageSize,
		FallbackDelay: cfg.FallbackDelay,
		PendingDelay:  cfg.PendingDelay,
	})
	defer engine.Close()

	p := tea.NewProgram(newModel(engine), tea.WithAltScreen())

	// Every engine state change becomes a UI refresh tick.
	engine.SetOnChange(func() { p.Send(refreshMsg{}) })

	log.Info().Str("sender_id", senderID).Str("db", cfg.DBPath).Msg("talkvera starting")

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if err := engine.LoadPage(ctx, true); err != nil {
		log.Warn().Err(err).Msg("initial history load failed")
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
