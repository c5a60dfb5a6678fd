package gorm

import (
	"database/sql/driver"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector stores a fingerprint in pgvector text form ("[0.1,0.2]"). On
// Postgres the column is a native vector; other dialects keep the text.
// An empty Vector is written as NULL.
type Vector []float32

// Scan implements sql.Scanner. NULL and empty values scan to nil.
func (v *Vector) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		if len(s) == 0 {
			*v = nil
			return nil
		}
	case string:
		if s == "" {
			*v = nil
			return nil
		}
	}

	var pv pgvector.Vector
	if err := pv.Scan(src); err != nil {
		return err
	}
	*v = pv.Slice()
	return nil
}

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return pgvector.NewVector(v).Value()
}

// GormDataType implements schema.GormDataTypeInterface.
func (Vector) GormDataType() string {
	return "vector"
}

// GormDBDataType implements migrator.GormDBDataTypeInterface.
func (Vector) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "vector"
	case "sqlserver":
		return "nvarchar(max)"
	case "mysql":
		return "longtext"
	default:
		return "text"
	}
}
