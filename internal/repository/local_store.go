package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"weekplan/internal/model"
)

// LocalStore keeps records in the on-device SQLite database.
type LocalStore struct {
	db *gorm.DB
}

func NewLocalStore(db *gorm.DB) *LocalStore {
	return &LocalStore{db: db}
}

func (s *LocalStore) Load(ctx context.Context, key string) (string, bool, error) {
	var rec model.Record
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	switch {
	case err == nil:
		return rec.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, unavailable("load "+key, err)
	}
}

func (s *LocalStore) Save(ctx context.Context, key, value string) error {
	rec := model.Record{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return unavailable("save "+key, err)
	}
	return nil
}

func (s *LocalStore) ListAll(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.WithContext(ctx).Model(&model.Record{}).Order("key ASC").Pluck("key", &keys).Error; err != nil {
		return nil, unavailable("list keys", err)
	}
	return keys, nil
}
