package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ultrathink/discovery-web/pkg/database"
	"github.com/ultrathink/discovery-web/pkg/log"
)

// EntryModel is the kv_entries row.
type EntryModel struct {
	Scope     string     `gorm:"primaryKey;size:64"`
	Key       string     `gorm:"column:kv_key;primaryKey;size:191"`
	Value     []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName sets the table name.
func (EntryModel) TableName() string {
	return "kv_entries"
}

// SQLKV stores entries in a relational database through GORM.
type SQLKV struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLKV migrates the kv_entries table and returns a store on db.
func NewSQLKV(db *gorm.DB) (*SQLKV, error) {
	if err := database.AutoMigrate(db, &EntryModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &SQLKV{db: db, now: time.Now}, nil
}

func (s *SQLKV) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var model EntryModel
	result := s.db.WithContext(ctx).First(&model, "scope = ? AND kv_key = ?", scope, key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get kv entry: %w", result.Error)
	}

	if model.ExpiresAt != nil && !s.now().Before(*model.ExpiresAt) {
		if err := s.Delete(ctx, scope, key); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str("scope", scope).Str("key", key).Msg("failed to delete expired kv entry")
		}
		return nil, ErrNotFound
	}

	return model.Value, nil
}

func (s *SQLKV) Set(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error {
	model := EntryModel{
		Scope:     scope,
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		model.ExpiresAt = &exp
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert kv entry: %w", result.Error)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Where("scope = ? AND kv_key IN ?", scope, keys).
		Delete(&EntryModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete kv entries: %w", result.Error)
	}
	return nil
}

// PurgeExpired removes every expired row and returns how many were removed.
func (s *SQLKV) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&EntryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge kv entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *SQLKV) Close() error {
	return database.Close(s.db)
}
