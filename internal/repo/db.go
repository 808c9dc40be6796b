// Package repo implements the durable-store contract for chat sessions and
// messages, backed by GORM over SQLite (pure Go driver). This file contains
// database bootstrapping and schema migration.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

// Open opens (or creates) the SQLite database, applies PRAGMAs and pool
// limits, and optionally installs the GORM tracing plugin.
//
// WAL mode matters here: the terminal client and agentd share one database
// file from separate processes, so writers must not starve readers.
func Open(path string, traced bool) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if traced {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate creates the session and message tables, plus the partial unique
// index that makes session creation races detectable: the second concurrent
// insert of an IN_PROGRESS session for the same (sender, client, source)
// fails with a uniqueness violation instead of producing a duplicate.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.ChatSession{},
		&domain.ChatMessage{},
	); err != nil {
		return err
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_open_session
		 ON dt_chat_sessions (sender_id, client_id, source)
		 WHERE status = 'IN_PROGRESS'`,
	).Error
}
