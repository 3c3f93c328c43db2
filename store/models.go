package store

import "time"

// EmotionRecord is one classification from a single modality.
type EmotionRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Emotion    string    `gorm:"size:50;not null" json:"emotion"`
	Confidence float64   `gorm:"not null;default:0" json:"confidence"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	SessionID  string    `gorm:"size:100;not null;index" json:"session_id"`
	Source     string    `gorm:"size:20;not null" json:"source"`
}

func (EmotionRecord) TableName() string { return "emotion_records" }

// MoodAnalysis is one fusion result. Either modality label may be empty.
type MoodAnalysis struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FaceEmotion  string    `gorm:"size:50" json:"face_emotion,omitempty"`
	VoiceEmotion string    `gorm:"size:50" json:"voice_emotion,omitempty"`
	OverallMood  string    `gorm:"size:50;not null" json:"overall_mood"`
	Confidence   float64   `gorm:"not null;default:0" json:"confidence"`
	Rule         string    `gorm:"size:30" json:"rule,omitempty"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	SessionID    string    `gorm:"size:100;not null;index" json:"session_id"`
}

func (MoodAnalysis) TableName() string { return "mood_analyses" }
