// Package store persists agents, documents, conversations, and messages in
// SQLite via GORM. It is the system of record; vector collections hold only
// derived chunk data.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agentforge/agentd/internal/config"
)

// Sentinel errors for store lookups.
var (
	ErrAgentNotFound        = errors.New("agent not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrDocumentNotFound     = errors.New("document not found")
)

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. The parent directory is created if missing.
func Open(path string, log *zap.Logger) (*Repo, error) {
	if log == nil {
		log = zap.NewNop()
	}

	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expanding store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(expanded), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&Agent{}, &Document{}, &Conversation{}, &Message{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	log.Info("store opened", zap.String("path", expanded))
	return &Repo{db: db}, nil
}

// OpenInMemory opens an in-memory database, used by tests.
func OpenInMemory() (*Repo, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&Agent{}, &Document{}, &Conversation{}, &Message{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Repo{db: db}, nil
}
