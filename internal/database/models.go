package database

import (
	"time"

	"gorm.io/gorm"
)

// SearchHistory records one issued search and how it ended
type SearchHistory struct {
	ID          uint      `gorm:"primaryKey"`
	Query       string    `gorm:"not null;index"`
	ResultCount int       `gorm:"default:0"`
	Outcome     string    `gorm:"not null"` // results, not_found, network, auth_expired, domain, unexpected
	SearchedAt  time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (SearchHistory) TableName() string {
	return "search_history"
}

// Play records a track that was opened in the player
type Play struct {
	ID       uint      `gorm:"primaryKey"`
	AudioID  string    `gorm:"not null;index"` // "<owner_id>_<id>"
	Artist   string    `gorm:"not null"`
	Title    string    `gorm:"not null"`
	Duration int       `gorm:"default:0"` // seconds
	PlayedAt time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Play) TableName() string {
	return "plays"
}

// Setting represents a key-value store for application settings
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// Download represents a download task in the queue
type Download struct {
	ID              string     `gorm:"primaryKey"`
	AudioID         string     `gorm:"not null;index"`
	Artist          string     `gorm:"not null"`
	Title           string     `gorm:"not null"`
	Duration        int        `gorm:"default:0"`
	URL             string     `gorm:"not null"`
	Status          string     `gorm:"not null;index"` // queued, downloading, paused, completed, failed, cancelled
	Progress        float64    `gorm:"default:0.0"`
	BytesDownloaded int64      `gorm:"default:0"`
	TotalBytes      int64      `gorm:"default:0"`
	Speed           int64      `gorm:"default:0"` // bytes/sec
	Error           string     `gorm:""`
	FilePath        string     `gorm:""`
	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP"`
	StartedAt       *time.Time `gorm:""`
	CompletedAt     *time.Time `gorm:""`
}

// TableName overrides the table name
func (Download) TableName() string {
	return "downloads"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&SearchHistory{},
		&Play{},
		&Setting{},
		&Download{},
	)
}
