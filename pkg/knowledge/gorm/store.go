package gorm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/consts"
	"gorm.io/gorm"
)

// Store implements knowledge.Store using GORM.
type Store struct {
	db *gorm.DB
}

// RecordModel represents the database schema for a question-answer pair.
type RecordModel struct {
	ID          uint `gorm:"primaryKey"`
	Question    string
	Answer      string
	SourceFile  string `gorm:"size:255;index"`
	Category    string `gorm:"size:255"`
	Fingerprint Vector
	CreatedAt   time.Time
}

// TableName overrides the table name.
func (RecordModel) TableName() string {
	return consts.TableNamePairs
}

func (m RecordModel) record() knowledge.Record {
	return knowledge.Record{
		ID: strconv.FormatUint(uint64(m.ID), 10),
		Pair: knowledge.Pair{
			Question:   m.Question,
			Answer:     m.Answer,
			SourceFile: m.SourceFile,
			Category:   m.Category,
		},
		Fingerprint: knowledge.CloneFingerprint(m.Fingerprint),
		CreatedAt:   m.CreatedAt,
	}
}

// New creates a new Store and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&RecordModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Add implements knowledge.Store.
func (s *Store) Add(ctx context.Context, pair knowledge.Pair, fingerprint []float32) (*knowledge.Record, error) {
	recs, err := s.AddBatch(ctx, []knowledge.Pair{pair}, [][]float32{fingerprint})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// AddBatch inserts all pairs in one transaction.
func (s *Store) AddBatch(ctx context.Context, pairs []knowledge.Pair, fingerprints [][]float32) ([]knowledge.Record, error) {
	if err := knowledge.ValidateBatch(pairs, fingerprints); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	models := make([]RecordModel, len(pairs))
	for i, p := range pairs {
		models[i] = RecordModel{
			Question:    p.Question,
			Answer:      p.Answer,
			SourceFile:  p.SourceFile,
			Category:    p.Category,
			Fingerprint: Vector(knowledge.FingerprintAt(fingerprints, i)),
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert pairs: %w", err)
	}

	out := make([]knowledge.Record, len(models))
	for i, m := range models {
		out[i] = m.record()
	}
	return out, nil
}

// SetFingerprint implements knowledge.Store.
func (s *Store) SetFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return knowledge.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model RecordModel
		if err := tx.Select(consts.ColID).First(&model, pk).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return knowledge.ErrNotFound
			}
			return err
		}
		return tx.Model(&model).Update(consts.ColFingerprint, Vector(fingerprint)).Error
	})
}

// All implements knowledge.Store.
func (s *Store) All(ctx context.Context) ([]knowledge.Record, error) {
	return s.find(s.db.WithContext(ctx))
}

// BySource implements knowledge.Store.
func (s *Store) BySource(ctx context.Context, source string) ([]knowledge.Record, error) {
	return s.find(s.db.WithContext(ctx).Where(consts.ColSourceFile+" = ?", source))
}

func (s *Store) find(q *gorm.DB) ([]knowledge.Record, error) {
	var models []RecordModel
	if err := q.Order(consts.ColID + " asc").Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]knowledge.Record, len(models))
	for i, m := range models {
		records[i] = m.record()
	}
	return records, nil
}

// Sources implements knowledge.Store.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	var sources []string
	err := s.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where(consts.ColSourceFile+" <> ?", "").
		Distinct().
		Pluck(consts.ColSourceFile, &sources).Error
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)
	return sources, nil
}

// Stats implements knowledge.Store.
func (s *Store) Stats(ctx context.Context) (knowledge.Stats, error) {
	var stats knowledge.Stats
	db := s.db.WithContext(ctx)

	if err := db.Model(&RecordModel{}).Count(&stats.TotalPairs).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&RecordModel{}).
		Where(consts.ColSourceFile+" <> ?", "").
		Distinct(consts.ColSourceFile).
		Count(&stats.SourceFiles).Error; err != nil {
		return stats, err
	}
	if err := db.Model(&RecordModel{}).
		Where(consts.ColFingerprint + " IS NOT NULL").
		Count(&stats.WithFingerprints).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// DeleteBySource implements knowledge.Store.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res := s.db.WithContext(ctx).Where(consts.ColSourceFile+" = ?", source).Delete(&RecordModel{})
	return res.RowsAffected, res.Error
}

// Clear implements knowledge.Store.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&RecordModel{}).Error
}
