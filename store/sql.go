package store

import (
	"context"
	"errors"

	"download-counter-go/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore 基于 gorm 的计数表
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	return get(s.db.WithContext(ctx), key)
}

func (s *SQLStore) Put(ctx context.Context, key, value string) error {
	return put(s.db.WithContext(ctx), key, value)
}

func (s *SQLStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		value, _, err := get(tx, key)
		if err != nil {
			return err
		}
		n = ParseCount(value) + 1
		return put(tx, key, FormatCount(n))
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func get(db *gorm.DB, key string) (string, bool, error) {
	var counter model.Counter
	err := db.Where("key = ?", key).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return counter.Value, true, nil
}

func put(db *gorm.DB, key, value string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model.Counter{Key: key, Value: value}).Error
}
