// Package identity supplies the stable opaque sender id that scopes every
// session and message to one local participant across restarts.
package identity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// fileName is the key under which the sender id is persisted in the state dir.
const fileName = "sender_id"

// Provider reads and persists the sender id under Dir. The zero value uses
// DefaultDir.
type Provider struct {
	Dir string
}

// DefaultDir returns the per-user state directory for this application.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".talkvera"
	}
	return filepath.Join(base, "talkvera")
}

// GetOrCreate returns the persisted sender id, generating and persisting a
// new one when absent. It never fails observably: if the state directory is
// unusable the freshly generated id is returned unpersisted, with a warning,
// so the caller always holds a valid identifier for the current run.
func (p Provider) GetOrCreate() string {
	dir := p.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	path := filepath.Join(dir, fileName)

	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	}

	id := uuid.NewString()

	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("sender id not persisted; using session-only id")
		return id
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("sender id not persisted; using session-only id")
		return id
	}
	return id
}
