package mssql

import (
	"fmt"

	gormstore "github.com/barekit/dossier/pkg/knowledge/gorm"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a SQL Server knowledge store.
func New(dsn string) (*gormstore.Store, error) {
	db, err := gorm.Open(sqlserver.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open mssql: %w", err)
	}
	return gormstore.New(db)
}
