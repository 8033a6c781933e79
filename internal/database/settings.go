package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSetting returns the value stored under key.
// A missing key is not an error: ok is false and value is empty.
func GetSetting(db *gorm.DB, key string) (value string, ok bool, err error) {
	var s Setting
	err = db.Where("key = ?", key).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return s.Value, true, nil
}

// SetSettings upserts all pairs in a single transaction
func SetSettings(db *gorm.DB, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, Setting{Key: k, Value: v, UpdatedAt: now})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

// SetSetting upserts a single key
func SetSetting(db *gorm.DB, key, value string) error {
	return SetSettings(db, map[string]string{key: value})
}

// DeleteSettings removes keys; missing keys are ignored
func DeleteSettings(db *gorm.DB, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return db.Where("key IN ?", keys).Delete(&Setting{}).Error
}
