package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Migration is one versioned schema step.
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string { return "schema_migrations" }

type sqlMigration struct {
	version, description string
	up, down             []string
}

func (m sqlMigration) Version() string        { return m.version }
func (m sqlMigration) Description() string    { return m.description }
func (m sqlMigration) Up(db *gorm.DB) error   { return execAll(db, m.up) }
func (m sqlMigration) Down(db *gorm.DB) error { return execAll(db, m.down) }

func execAll(db *gorm.DB, stmts []string) error {
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}

var migrations = []Migration{
	sqlMigration{
		version:     "001_initial",
		description: "emotion records and mood analyses",
		up: []string{
			`CREATE TABLE IF NOT EXISTS emotion_records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				emotion VARCHAR(50) NOT NULL,
				confidence REAL NOT NULL DEFAULT 0,
				timestamp DATETIME NOT NULL,
				session_id VARCHAR(100) NOT NULL,
				source VARCHAR(20) NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_emotion_records_session ON emotion_records(session_id, source, timestamp)`,
			`CREATE TABLE IF NOT EXISTS mood_analyses (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				face_emotion VARCHAR(50),
				voice_emotion VARCHAR(50),
				overall_mood VARCHAR(50) NOT NULL,
				confidence REAL NOT NULL DEFAULT 0,
				timestamp DATETIME NOT NULL,
				session_id VARCHAR(100) NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_mood_analyses_session ON mood_analyses(session_id, timestamp)`,
		},
		down: []string{
			`DROP TABLE IF EXISTS mood_analyses`,
			`DROP TABLE IF EXISTS emotion_records`,
		},
	},
	sqlMigration{
		version:     "002_fusion_rule",
		description: "record which fusion rule decided a mood",
		up:          []string{`ALTER TABLE mood_analyses ADD COLUMN rule VARCHAR(30)`},
		down:        []string{`ALTER TABLE mood_analyses DROP COLUMN rule`},
	},
}

// Migrate applies every migration not yet recorded in schema_migrations,
// each in its own transaction.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := db.Model(&MigrationRecord{}).Pluck("version", &applied).Error; err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version()] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{
				Version:   m.Version(),
				Name:      m.Description(),
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", m.Version(), err)
		}
	}
	return nil
}
