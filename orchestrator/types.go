package orchestrator

import (
	"time"

	"github.com/maastricht-university/edmo-mood/emotion"
	"github.com/maastricht-university/edmo-mood/face"
	"github.com/maastricht-university/edmo-mood/fusion"
	"github.com/maastricht-university/edmo-mood/voice"
)

// Observation is the latest estimate of one modality. Cleared marks a round
// that carried no input for it, such as a frame without a face; fusion then
// treats the modality as absent.
type Observation struct {
	Estimate fusion.Estimate `json:"estimate"`
	At       time.Time       `json:"at"`
	Cleared  bool            `json:"cleared,omitempty"`
}

// Snapshot is a consistent copy of a session's latest estimates; either may be nil.
type Snapshot struct {
	Face  *Observation `json:"face,omitempty"`
	Voice *Observation `json:"voice,omitempty"`
}

type VoiceOutcome struct {
	SessionID string         `json:"session_id"`
	Voice     voice.Result   `json:"voice"`
	FaceLabel *emotion.Label `json:"face_emotion"`
	Mood      *fusion.Result `json:"mood,omitempty"`
}

type FaceOutcome struct {
	SessionID  string      `json:"session_id"`
	Face       face.Result `json:"face"`
	Confidence float64     `json:"confidence,omitempty"`
	Recorded   bool        `json:"recorded"`
}

type AnalyzeOutcome struct {
	SessionID string         `json:"session_id"`
	Voice     *voice.Result  `json:"voice,omitempty"`
	Face      *face.Result   `json:"face,omitempty"`
	Mood      *fusion.Result `json:"mood,omitempty"`
}

// Point is one persisted classification on the timeline.
type Point struct {
	Time       time.Time `json:"timestamp"`
	Offset     float64   `json:"offset"` // sec since the first point
	Source     string    `json:"source"`
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
}

type MoodPoint struct {
	Time       time.Time `json:"timestamp"`
	Mood       string    `json:"mood"`
	Confidence float64   `json:"confidence"`
	Rule       string    `json:"rule,omitempty"`
}

type Window struct {
	T0             float64                    `json:"t0"` // sec
	T1             float64                    `json:"t1"`
	Points         []Point                    `json:"-"`
	Counts         map[emotion.Label]int      `json:"counts"`
	Dominant       emotion.Label              `json:"dominant,omitempty"`
	FamilyShares   map[emotion.Family]float64 `json:"family_shares"`
	MeanConfidence float64                    `json:"mean_confidence"`
	Vector         []float64                  `json:"vector"`
}

// Frequency is a label count; Timeline lists them most frequent first.
type Frequency struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}

type Timeline struct {
	SessionID     string      `json:"session_id"`
	Since         time.Time   `json:"since"`
	Points        []Point     `json:"points"`
	FaceEmotions  []*string   `json:"face_emotions"`
	VoiceEmotions []*string   `json:"voice_emotions"`
	Moods         []MoodPoint `json:"mood_timeline"`
	Frequency     []Frequency `json:"emotion_frequency"`
	Windows       []Window    `json:"windows"`
	TotalRecords  int         `json:"total_records"`
	TotalMoods    int         `json:"total_moods"`
}
