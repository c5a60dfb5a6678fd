package sqlite

import (
	"fmt"

	gormstore "github.com/barekit/dossier/pkg/knowledge/gorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a SQLite knowledge store at dsn, typically a file path.
func New(dsn string) (*gormstore.Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return gormstore.New(db)
}
