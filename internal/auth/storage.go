package auth

import (
	"context"
	"fmt"

	"github.com/veriloft/vmusic/internal/database"
	"gorm.io/gorm"
)

const (
	vkTokenSettingKey     = "vk_token"
	lastFMTokenSettingKey = "lastfm_token"
)

// DBStore persists the token pair in the settings table
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a settings-backed token store
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Load implements Store. Missing rows yield an empty pair.
func (s *DBStore) Load(ctx context.Context) (TokenPair, error) {
	db := s.db.WithContext(ctx)

	vk, _, err := database.GetSetting(db, vkTokenSettingKey)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to load vk token: %w", err)
	}
	lastFM, _, err := database.GetSetting(db, lastFMTokenSettingKey)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to load last.fm token: %w", err)
	}

	return TokenPair{VKToken: vk, LastFMToken: lastFM}, nil
}

// Save implements Store. An empty pair deletes the stored tokens.
func (s *DBStore) Save(ctx context.Context, pair TokenPair) error {
	db := s.db.WithContext(ctx)

	if pair.IsZero() {
		return database.DeleteSettings(db, vkTokenSettingKey, lastFMTokenSettingKey)
	}

	if err := database.SetSettings(db, map[string]string{
		vkTokenSettingKey:     pair.VKToken,
		lastFMTokenSettingKey: pair.LastFMToken,
	}); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}
