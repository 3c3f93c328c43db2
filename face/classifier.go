// Package face classifies face regions of a camera frame into emotion labels.
//
// A Classifier is a small state machine owned by exactly one stream. It runs
// Live until feature extraction fails, reports a NoFace sentinel for frames
// without faces, and once it has fallen back to Simulation it stays there,
// cycling through the vocabulary.
package face

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-mood/emotion"
)

var ErrNoDetector = errors.New("face: no detector configured")

type Mode int

const (
	Live Mode = iota
	NoFace
	Simulation
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case NoFace:
		return "no_face"
	case Simulation:
		return "simulation"
	}
	return "unknown"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Sentinel marks results that are not a classification of a real face.
type Sentinel string

const (
	SentinelNone       Sentinel = ""
	SentinelNoFace     Sentinel = "no_face"
	SentinelSimulation Sentinel = "simulation"
)

// NoFaceText is what the overlay and the HTTP API show for SentinelNoFace.
const NoFaceText = "No face detected"

// Detector locates face rectangles in a grayscale frame.
type Detector interface {
	Detect(ctx context.Context, frame *image.Gray) ([]image.Rectangle, error)
}

type FaceResult struct {
	Region image.Rectangle `json:"region"`
	Stats  Stats           `json:"stats"`
	Leaf   string          `json:"leaf,omitempty"`
	Label  emotion.Label   `json:"label"`
}

type Result struct {
	Label    emotion.Label `json:"label,omitempty"`
	Sentinel Sentinel      `json:"sentinel,omitempty"`
	Faces    []FaceResult  `json:"faces,omitempty"`
	Mode     Mode          `json:"mode"`
}

// ForFusion returns the label only when it came from a real face.
func (r Result) ForFusion() (emotion.Label, bool) {
	if r.Sentinel != SentinelNone || !r.Label.Valid() {
		return "", false
	}
	return r.Label, true
}

// Display is the text shown to users for r.
func (r Result) Display() string {
	if r.Sentinel == SentinelNoFace {
		return NoFaceText
	}
	return string(r.Label)
}

type Option func(*Classifier)

// WithNuanced toggles the candidate cascade. When off only Happy, Angry and
// Neutral are produced.
func WithNuanced(on bool) Option { return func(c *Classifier) { c.nuanced = on } }

// WithSimulation starts the classifier in Simulation mode.
func WithSimulation(on bool) Option {
	return func(c *Classifier) {
		if on {
			c.mode = Simulation
		}
	}
}

func WithDetector(d Detector) Option { return func(c *Classifier) { c.detector = d } }

func WithLogger(l *logrus.Entry) Option { return func(c *Classifier) { c.log = l } }

type Classifier struct {
	mu       sync.Mutex
	nuanced  bool
	mode     Mode
	cursor   int
	last     Result
	detector Detector
	log      *logrus.Entry
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{nuanced: true, mode: Live}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = logrus.NewEntry(l)
	}
	return c
}

func (c *Classifier) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Last returns the most recent result.
func (c *Classifier) Last() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ClassifyStats classifies already extracted face statistics. An empty slice
// is a frame without faces. In Simulation mode the statistics are ignored.
func (c *Classifier) ClassifyStats(faces []Stats) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Simulation {
		return c.simulate()
	}
	out := make([]FaceResult, len(faces))
	for i, s := range faces {
		out[i] = FaceResult{Stats: s.Clamp()}
	}
	return c.classify(out)
}

// ClassifyFrame detects faces in img, extracts their statistics and classifies
// them. Any detection or extraction failure switches the classifier to
// Simulation for good and the frame is answered from the simulation cycle.
func (c *Classifier) ClassifyFrame(ctx context.Context, img image.Image) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Simulation {
		return c.simulate()
	}

	faces, err := c.extract(ctx, img)
	if err != nil {
		c.log.WithError(err).Error("face feature extraction failed, switching to simulation")
		c.mode = Simulation
		return c.simulate()
	}
	return c.classify(faces)
}

// Simulate returns the label under the cursor and advances it.
func (c *Classifier) Simulate() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simulate()
}

func (c *Classifier) extract(ctx context.Context, img image.Image) ([]FaceResult, error) {
	if c.detector == nil {
		return nil, ErrNoDetector
	}
	gray := Grayscale(img)
	rects, err := c.detector.Detect(ctx, gray)
	if err != nil {
		return nil, err
	}
	out := make([]FaceResult, 0, len(rects))
	for _, r := range rects {
		s, err := Extract(gray, r)
		if err != nil {
			return nil, err
		}
		out = append(out, FaceResult{Region: r, Stats: s})
	}
	return out, nil
}

func (c *Classifier) classify(faces []FaceResult) Result {
	if len(faces) == 0 {
		c.mode = NoFace
		c.last = Result{Sentinel: SentinelNoFace, Mode: NoFace}
		return c.last
	}

	c.mode = Live
	var label emotion.Label
	for i := range faces {
		f := &faces[i]
		if c.nuanced {
			f.Leaf, _ = Candidates(f.Stats)
			f.Label = ClassifyNuanced(f.Stats)
		} else {
			f.Leaf = "basic"
			f.Label = ClassifyBasic(f.Stats)
		}
		// several faces overwrite each other; the last one is reported
		label = f.Label
	}
	c.last = Result{Label: label, Faces: faces, Mode: Live}
	c.log.WithFields(logrus.Fields{"faces": len(faces), "label": label}).Debug("face classified")
	return c.last
}

func (c *Classifier) simulate() Result {
	all := emotion.All()
	label := all[c.cursor]
	c.cursor = (c.cursor + 1) % len(all)
	c.last = Result{Label: label, Sentinel: SentinelSimulation, Mode: Simulation}
	return c.last
}
