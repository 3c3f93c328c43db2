package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maastricht-university/edmo-mood/emotion"
	"github.com/maastricht-university/edmo-mood/face"
	"github.com/maastricht-university/edmo-mood/fusion"
)

// Session is one logical stream (one camera and microphone). It owns its
// face classifier, so simulation cursors never leak between sessions.
type Session struct {
	ID      string
	Created time.Time

	face *face.Classifier

	mu    sync.Mutex
	faceO *Observation
	voice *Observation
}

func (s *Session) Face() *face.Classifier { return s.face }

func (s *Session) observe(m emotion.Modality, est fusion.Estimate, at time.Time) {
	o := &Observation{Estimate: est, At: at}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m {
	case emotion.Face:
		s.faceO = o
	case emotion.Voice:
		s.voice = o
	}
}

// clear records that the latest round of m carried no usable input.
func (s *Session) clear(m emotion.Modality, at time.Time) {
	o := &Observation{At: at, Cleared: true}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m {
	case emotion.Face:
		s.faceO = o
	case emotion.Voice:
		s.voice = o
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var snap Snapshot
	if s.faceO != nil {
		o := *s.faceO
		snap.Face = &o
	}
	if s.voice != nil {
		o := *s.voice
		snap.Voice = &o
	}
	return snap
}

// Sessions is the registry of live sessions.
type Sessions struct {
	mu      sync.Mutex
	m       map[string]*Session
	newFace func() *face.Classifier
	now     func() time.Time
}

func NewSessions(newFace func() *face.Classifier) *Sessions {
	return &Sessions{m: map[string]*Session{}, newFace: newFace, now: time.Now}
}

// Get returns the session with id, creating it on first use. An empty id
// gets a fresh uuid.
func (s *Sessions) Get(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[id]; ok {
		return sess
	}
	sess := &Session{ID: id, Created: s.now(), face: s.newFace()}
	s.m[id] = sess
	return sess
}

func (s *Sessions) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	return sess, ok
}

func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Sessions) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}
