// Package store persists classification and fusion results per session in
// sqlite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at dsn and migrates it.
func Open(dsn string) (*Store, error) {
	if dir := filepath.Dir(dsn); dsn != ":memory:" && !isURI(dsn) && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates it.
func New(db *gorm.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) SaveEmotion(ctx context.Context, r *EmotionRecord) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	// stored as text; UTC keeps range queries ordered
	r.Timestamp = r.Timestamp.UTC()
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("save emotion: %w", err)
	}
	return nil
}

func (s *Store) SaveMood(ctx context.Context, m *MoodAnalysis) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	// stored as text; UTC keeps range queries ordered
	m.Timestamp = m.Timestamp.UTC()
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("save mood: %w", err)
	}
	return nil
}

// LatestEmotion returns the newest record of source in session.
func (s *Store) LatestEmotion(ctx context.Context, session, source string) (*EmotionRecord, error) {
	var r EmotionRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND source = ?", session, source).
		Order("timestamp DESC, id DESC").
		First(&r).Error
	if err != nil {
		return nil, notFound("latest emotion", err)
	}
	return &r, nil
}

func (s *Store) LatestMood(ctx context.Context, session string) (*MoodAnalysis, error) {
	var m MoodAnalysis
	err := s.db.WithContext(ctx).
		Where("session_id = ?", session).
		Order("timestamp DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, notFound("latest mood", err)
	}
	return &m, nil
}

// ListEmotions returns up to limit records of session, newest first.
// An empty session lists across all sessions.
func (s *Store) ListEmotions(ctx context.Context, session string, limit int) ([]EmotionRecord, error) {
	q := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if session != "" {
		q = q.Where("session_id = ?", session)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []EmotionRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	return out, nil
}

// EmotionsSince returns the records of session at or after since, oldest first.
func (s *Store) EmotionsSince(ctx context.Context, session string, since time.Time) ([]EmotionRecord, error) {
	var out []EmotionRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND timestamp >= ?", session, since.UTC()).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("emotions since: %w", err)
	}
	return out, nil
}

func (s *Store) MoodsSince(ctx context.Context, session string, since time.Time) ([]MoodAnalysis, error) {
	var out []MoodAnalysis
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND timestamp >= ?", session, since.UTC()).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("moods since: %w", err)
	}
	return out, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isURI(dsn string) bool { return len(dsn) > 5 && dsn[:5] == "file:" }
