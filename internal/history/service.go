package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/veriloft/vmusic/internal/database"
	"github.com/veriloft/vmusic/internal/providers/vk"
)

// Service records searches and plays
type Service struct {
	db *gorm.DB
}

// SortOrder defines the sorting order for history items
type SortOrder string

const (
	SortRecentFirst SortOrder = "recent_first"
	SortOldestFirst SortOrder = "oldest_first"
	SortQueryAsc    SortOrder = "query_asc"
	SortQueryDesc   SortOrder = "query_desc"
)

// FilterOptions defines filtering options for search history queries
type FilterOptions struct {
	Outcome     string    // results, not_found, network, ... or empty for all
	SearchQuery string    // substring of the query
	StartDate   time.Time // Filter by date range
	EndDate     time.Time
	Limit       int // 0 = no limit
	Offset      int
	SortBy      SortOrder
}

// SearchItem is one recorded search
type SearchItem struct {
	ID          uint
	Query       string
	ResultCount int
	Outcome     string
	SearchedAt  time.Time
}

// PlayItem is one recorded play
type PlayItem struct {
	ID       uint
	AudioID  string
	Artist   string
	Title    string
	Duration time.Duration
	PlayedAt time.Time
}

// Stats summarises the recorded history
type Stats struct {
	TotalSearches  int64
	ByOutcome      map[string]int64
	TotalPlays     int64
	TotalListening time.Duration
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record stores a finished search. Blank queries are ignored.
func (s *Service) Record(ctx context.Context, query string, resultCount int, outcome string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	return s.db.WithContext(ctx).Create(&database.SearchHistory{
		Query:       query,
		ResultCount: resultCount,
		Outcome:     outcome,
		SearchedAt:  time.Now(),
	}).Error
}

// GetSearches retrieves search history with filtering and sorting
func (s *Service) GetSearches(ctx context.Context, filter FilterOptions) ([]SearchItem, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.WithContext(ctx).Model(&database.SearchHistory{})

	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if filter.SearchQuery != "" {
		query = query.Where("query LIKE ?", "%"+filter.SearchQuery+"%")
	}
	if !filter.StartDate.IsZero() {
		query = query.Where("searched_at >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query = query.Where("searched_at <= ?", filter.EndDate)
	}

	switch filter.SortBy {
	case SortOldestFirst:
		query = query.Order("searched_at ASC").Order("id ASC")
	case SortQueryAsc:
		query = query.Order("query ASC")
	case SortQueryDesc:
		query = query.Order("query DESC")
	default:
		query = query.Order("searched_at DESC").Order("id DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []database.SearchHistory
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch search history: %w", err)
	}

	items := make([]SearchItem, len(records))
	for i, r := range records {
		items[i] = SearchItem{
			ID:          r.ID,
			Query:       r.Query,
			ResultCount: r.ResultCount,
			Outcome:     r.Outcome,
			SearchedAt:  r.SearchedAt,
		}
	}
	return items, nil
}

// RecentQueries returns up to limit distinct queries, most recent first
func (s *Service) RecentQueries(ctx context.Context, limit int) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	q := s.db.WithContext(ctx).Model(&database.SearchHistory{}).
		Select("query").
		Group("query").
		Order("MAX(searched_at) DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var queries []string
	if err := q.Pluck("query", &queries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent queries: %w", err)
	}
	return queries, nil
}

// RecordPlay stores a track opened in the player
func (s *Service) RecordPlay(ctx context.Context, audio vk.Audio) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.WithContext(ctx).Create(&database.Play{
		AudioID:  audio.Key(),
		Artist:   audio.Artist,
		Title:    audio.Title,
		Duration: audio.Duration,
		PlayedAt: time.Now(),
	}).Error
}

// GetPlays returns the most recent plays
func (s *Service) GetPlays(ctx context.Context, limit int) ([]PlayItem, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	q := s.db.WithContext(ctx).Order("played_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []database.Play
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch plays: %w", err)
	}

	items := make([]PlayItem, len(records))
	for i, r := range records {
		items[i] = PlayItem{
			ID:       r.ID,
			AudioID:  r.AudioID,
			Artist:   r.Artist,
			Title:    r.Title,
			Duration: time.Duration(r.Duration) * time.Second,
			PlayedAt: r.PlayedAt,
		}
	}
	return items, nil
}

// DeleteByID removes a search history item by ID
func (s *Service) DeleteByID(ctx context.Context, id uint) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.WithContext(ctx).Delete(&database.SearchHistory{}, id).Error
}

// Clear removes all recorded searches and plays
func (s *Service) Clear(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&database.SearchHistory{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&database.Play{}).Error
	})
}

// Cleanup removes searches and plays older than maxAge
func (s *Service) Cleanup(ctx context.Context, maxAge time.Duration) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	cutoff := time.Now().Add(-maxAge)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("searched_at < ?", cutoff).Delete(&database.SearchHistory{}).Error; err != nil {
			return err
		}
		return tx.Where("played_at < ?", cutoff).Delete(&database.Play{}).Error
	})
}

// GetStats retrieves history statistics
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	db := s.db.WithContext(ctx)
	stats := Stats{ByOutcome: make(map[string]int64)}

	if err := db.Model(&database.SearchHistory{}).Count(&stats.TotalSearches).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		Outcome string
		Count   int64
	}
	if err := db.Model(&database.SearchHistory{}).
		Select("outcome, COUNT(*) AS count").
		Group("outcome").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByOutcome[r.Outcome] = r.Count
	}

	if err := db.Model(&database.Play{}).Count(&stats.TotalPlays).Error; err != nil {
		return nil, err
	}

	var totalSeconds int64
	if err := db.Model(&database.Play{}).Select("COALESCE(SUM(duration), 0)").Scan(&totalSeconds).Error; err != nil {
		return nil, err
	}
	stats.TotalListening = time.Duration(totalSeconds) * time.Second

	return &stats, nil
}
