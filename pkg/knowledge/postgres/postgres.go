package postgres

import (
	"fmt"

	gormstore "github.com/barekit/dossier/pkg/knowledge/gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a Postgres knowledge store. The pgvector extension is created
// when missing so fingerprints live in a native vector column.
func New(dsn string) (*gormstore.Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}
	return gormstore.New(db)
}
