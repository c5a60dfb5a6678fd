package mysql

import (
	"fmt"

	gormstore "github.com/barekit/dossier/pkg/knowledge/gorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a MySQL knowledge store. The DSN should set parseTime=true.
func New(dsn string) (*gormstore.Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	return gormstore.New(db)
}
