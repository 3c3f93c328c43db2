// Package orchestrator drives classification rounds per session: it runs the
// voice and face classifiers, fuses their latest results, persists both and
// builds timeline views and exports from what was stored.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/edmo-mood/clients"
	cfg "github.com/maastricht-university/edmo-mood/config"
	"github.com/maastricht-university/edmo-mood/emotion"
	"github.com/maastricht-university/edmo-mood/face"
	"github.com/maastricht-university/edmo-mood/fusion"
	"github.com/maastricht-university/edmo-mood/logging"
	"github.com/maastricht-university/edmo-mood/metrics"
	"github.com/maastricht-university/edmo-mood/store"
	"github.com/maastricht-university/edmo-mood/voice"
)

// Recorder persists results; *store.Store implements it.
type Recorder interface {
	SaveEmotion(ctx context.Context, r *store.EmotionRecord) error
	SaveMood(ctx context.Context, m *store.MoodAnalysis) error
	LatestEmotion(ctx context.Context, session, source string) (*store.EmotionRecord, error)
	LatestMood(ctx context.Context, session string) (*store.MoodAnalysis, error)
	ListEmotions(ctx context.Context, session string, limit int) ([]store.EmotionRecord, error)
	EmotionsSince(ctx context.Context, session string, since time.Time) ([]store.EmotionRecord, error)
	MoodsSince(ctx context.Context, session string, since time.Time) ([]store.MoodAnalysis, error)
}

type Pipeline struct {
	cfg      *cfg.Root
	http     *clients.HTTP
	rec      Recorder
	log      *logrus.Entry
	sampler  *voice.Sampler
	voice    *voice.Classifier
	sessions *Sessions
	detector face.Detector
	now      func() time.Time
}

type Option func(*Pipeline)

func WithHTTP(h *clients.HTTP) Option { return func(p *Pipeline) { p.http = h } }

func WithSampler(s *voice.Sampler) Option { return func(p *Pipeline) { p.sampler = s } }

// WithDetector overrides the face detection service for every new session.
func WithDetector(d face.Detector) Option { return func(p *Pipeline) { p.detector = d } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func NewPipeline(c *cfg.Root, rec Recorder, logger *logrus.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: c, http: clients.NewHTTP(), rec: rec, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	p.log = logger.WithField("component", "pipeline")

	if p.sampler == nil {
		seed := c.Voice.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		p.sampler = voice.NewSampler(seed)
	}
	p.sampler.WithConfidenceBand(c.Voice.ConfidenceMin, c.Voice.ConfidenceSpread)
	p.voice = voice.NewClassifier(p.sampler, logger)

	if p.detector == nil && c.Services.FaceDetection.URL != "" {
		p.detector = clients.FaceDetector{HTTP: p.http, URL: c.Services.FaceDetection.URL}
	}
	p.sessions = NewSessions(func() *face.Classifier {
		return face.NewClassifier(
			face.WithNuanced(c.Face.Nuanced),
			face.WithSimulation(c.Face.Simulation),
			face.WithDetector(p.detector),
			face.WithLogger(logger.WithField("component", "face_classifier")),
		)
	})
	p.sessions.now = p.now
	return p
}

func (p *Pipeline) Sessions() *Sessions { return p.sessions }

// Session returns (creating) the session with id.
func (p *Pipeline) Session(id string) *Session {
	s := p.sessions.Get(id)
	metrics.SetSessionsActive(p.sessions.Len())
	return s
}

// EndSession forgets the in-memory state of sessionID. Stored records are
// kept. It reports whether the session was live.
func (p *Pipeline) EndSession(sessionID string) bool {
	if _, ok := p.sessions.Lookup(sessionID); !ok {
		return false
	}
	p.sessions.Drop(sessionID)
	metrics.SetSessionsActive(p.sessions.Len())
	p.log.WithField("session", sessionID).Info("session ended")
	return true
}

// ClassifyVoice classifies in, records it and fuses it with the session's
// latest face label.
func (p *Pipeline) ClassifyVoice(ctx context.Context, sessionID string, in voice.Input) (*VoiceOutcome, error) {
	sess := p.Session(sessionID)
	done := metrics.ObserveClassification(string(emotion.Voice))
	res := p.voice.Analyze(in)
	done()
	metrics.RecordClassification(string(emotion.Voice), string(res.Label))

	at := p.now()
	if err := p.rec.SaveEmotion(ctx, &store.EmotionRecord{
		Emotion:    string(res.Label),
		Confidence: res.Confidence,
		Timestamp:  at,
		SessionID:  sess.ID,
		Source:     string(emotion.Voice),
	}); err != nil {
		return nil, err
	}
	sess.observe(emotion.Voice, fusion.Estimate{Label: res.Label, Confidence: res.Confidence}, at)

	mood, faceLabel, err := p.fuse(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &VoiceOutcome{SessionID: sess.ID, Voice: res, FaceLabel: faceLabel, Mood: mood}, nil
}

// ClassifyFace classifies already extracted face statistics.
func (p *Pipeline) ClassifyFace(ctx context.Context, sessionID string, faces []face.Stats) (*FaceOutcome, error) {
	sess := p.Session(sessionID)
	done := metrics.ObserveClassification(string(emotion.Face))
	res := sess.Face().ClassifyStats(faces)
	done()
	return p.recordFace(ctx, sess, res)
}

// ClassifyFrame runs detection and extraction on img before classifying.
func (p *Pipeline) ClassifyFrame(ctx context.Context, sessionID string, img image.Image) (*FaceOutcome, error) {
	sess := p.Session(sessionID)
	return p.recordFace(ctx, sess, p.classifyFrame(ctx, sess, img))
}

// classifyFrame counts the frame that pushed the classifier into Simulation
// as an extraction failure.
func (p *Pipeline) classifyFrame(ctx context.Context, sess *Session, img image.Image) face.Result {
	done := metrics.ObserveClassification(string(emotion.Face))
	before := sess.Face().Mode()
	res := sess.Face().ClassifyFrame(ctx, img)
	done()
	if before != face.Simulation && res.Mode == face.Simulation {
		metrics.RecordExtractionFailure(string(emotion.Face))
		p.log.WithField("session", sess.ID).Warn("face extraction failed, session switched to simulation")
	}
	return res
}

// recordFace persists real face labels. Sentinel results are reported but
// neither stored nor offered to fusion.
func (p *Pipeline) recordFace(ctx context.Context, sess *Session, res face.Result) (*FaceOutcome, error) {
	out := &FaceOutcome{SessionID: sess.ID, Face: res}
	if res.Sentinel != face.SentinelNone {
		metrics.RecordSentinel(string(res.Sentinel))
	}
	label, ok := res.ForFusion()
	if !ok {
		sess.clear(emotion.Face, p.now())
		return out, nil
	}
	metrics.RecordClassification(string(emotion.Face), string(label))

	at := p.now()
	out.Confidence = p.sampler.Confidence()
	if err := p.rec.SaveEmotion(ctx, &store.EmotionRecord{
		Emotion:    string(label),
		Confidence: out.Confidence,
		Timestamp:  at,
		SessionID:  sess.ID,
		Source:     string(emotion.Face),
	}); err != nil {
		return nil, err
	}
	sess.observe(emotion.Face, fusion.Estimate{Label: label, Confidence: out.Confidence}, at)
	out.Recorded = true
	return out, nil
}

// Record stores a label reported by a client and makes it the session's
// latest estimate for that modality.
func (p *Pipeline) Record(ctx context.Context, sessionID string, m emotion.Modality, label emotion.Label, confidence float64) (*store.EmotionRecord, error) {
	if !label.Valid() {
		return nil, fmt.Errorf("%w: %q", emotion.ErrUnknownLabel, label)
	}
	confidence = fusion.ClampConfidence(confidence)
	sess := p.Session(sessionID)
	r := &store.EmotionRecord{
		Emotion:    string(label),
		Confidence: confidence,
		Timestamp:  p.now(),
		SessionID:  sess.ID,
		Source:     string(m),
	}
	if err := p.rec.SaveEmotion(ctx, r); err != nil {
		return nil, err
	}
	sess.observe(m, fusion.Estimate{Label: label, Confidence: confidence}, r.Timestamp)
	metrics.RecordClassification(string(m), string(label))
	return r, nil
}

// fuse combines the session snapshot and persists the mood. A modality this
// process has not observed falls back to its latest stored record.
func (p *Pipeline) fuse(ctx context.Context, sess *Session) (*fusion.Result, *emotion.Label, error) {
	snap := sess.Snapshot()
	faceEst, err := p.estimate(ctx, sess.ID, emotion.Face, snap.Face)
	if err != nil {
		return nil, nil, err
	}
	voiceEst, err := p.estimate(ctx, sess.ID, emotion.Voice, snap.Voice)
	if err != nil {
		return nil, nil, err
	}

	res, ok := fusion.Fuse(faceEst, voiceEst)
	if !ok {
		return nil, nil, nil
	}
	metrics.RecordFusion(string(res.Rule))

	m := &store.MoodAnalysis{
		OverallMood: string(res.Overall),
		Confidence:  res.Confidence,
		Rule:        string(res.Rule),
		Timestamp:   p.now(),
		SessionID:   sess.ID,
	}
	if res.FaceLabel != nil {
		m.FaceEmotion = string(*res.FaceLabel)
	}
	if res.VoiceLabel != nil {
		m.VoiceEmotion = string(*res.VoiceLabel)
	}
	if err := p.rec.SaveMood(ctx, m); err != nil {
		return nil, nil, err
	}
	p.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"mood":    res.Overall,
		"rule":    res.Rule,
	}).Debug("mood fused")
	return &res, res.FaceLabel, nil
}

func (p *Pipeline) estimate(ctx context.Context, sessionID string, m emotion.Modality, o *Observation) (*fusion.Estimate, error) {
	if o != nil {
		if o.Cleared {
			return nil, nil
		}
		return &o.Estimate, nil
	}
	r, err := p.rec.LatestEmotion(ctx, sessionID, string(m))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &fusion.Estimate{Label: emotion.Label(r.Emotion), Confidence: r.Confidence}, nil
}

// Fuse runs a fusion round on the session's current snapshot.
func (p *Pipeline) Fuse(ctx context.Context, sessionID string) (*fusion.Result, error) {
	res, _, err := p.fuse(ctx, p.Session(sessionID))
	return res, err
}

// Analyze runs one round from files: remote voice feature extraction on
// audioPath and face classification of imagePath run concurrently, then the
// results are fused once. Either path may be empty.
func (p *Pipeline) Analyze(ctx context.Context, sessionID, audioPath, imagePath string) (*AnalyzeOutcome, error) {
	if audioPath == "" && imagePath == "" {
		return nil, errors.New("analyze: need an audio clip or an image")
	}
	sess := p.Session(sessionID)
	out := &AnalyzeOutcome{SessionID: sess.ID}

	g, gctx := errgroup.WithContext(ctx)
	var voiceRes *voice.Result
	if audioPath != "" {
		g.Go(func() error {
			url := p.cfg.Services.VoiceFeatures.URL
			if url == "" {
				return errors.New("analyze: services.voice_features.url is not configured")
			}
			feat, err := p.http.VoiceFeatures(gctx, url, audioPath)
			if err != nil {
				metrics.RecordExtractionFailure(string(emotion.Voice))
				return fmt.Errorf("voice features: %w", err)
			}
			res := p.voice.Analyze(voice.Input{
				Pitch:             feat.Pitch,
				Volume:            feat.Volume,
				SpeechRate:        feat.SpeechRate,
				PitchVariability:  feat.PitchVariability,
				VolumeConsistency: feat.VolumeConsistency,
			})
			metrics.RecordClassification(string(emotion.Voice), string(res.Label))
			voiceRes = &res
			return nil
		})
	}
	if imagePath != "" {
		g.Go(func() error {
			raw, err := os.ReadFile(imagePath)
			if err != nil {
				return err
			}
			img, _, err := face.DecodeFrame(raw)
			if err != nil {
				return err
			}
			fo, err := p.recordFace(gctx, sess, p.classifyFrame(gctx, sess, img))
			if err != nil {
				return err
			}
			out.Face = &fo.Face
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if voiceRes != nil {
		at := p.now()
		if err := p.rec.SaveEmotion(ctx, &store.EmotionRecord{
			Emotion:    string(voiceRes.Label),
			Confidence: voiceRes.Confidence,
			Timestamp:  at,
			SessionID:  sess.ID,
			Source:     string(emotion.Voice),
		}); err != nil {
			return nil, err
		}
		sess.observe(emotion.Voice, fusion.Estimate{Label: voiceRes.Label, Confidence: voiceRes.Confidence}, at)
		out.Voice = voiceRes
	}

	mood, _, err := p.fuse(ctx, sess)
	if err != nil {
		return nil, err
	}
	out.Mood = mood
	return out, nil
}

// Timeline builds the timeline view of sessionID from records at or after since.
func (p *Pipeline) Timeline(ctx context.Context, sessionID string, since time.Time) (*Timeline, error) {
	recs, err := p.rec.EmotionsSince(ctx, sessionID, since)
	if err != nil {
		return nil, err
	}
	moods, err := p.rec.MoodsSince(ctx, sessionID, since)
	if err != nil {
		return nil, err
	}

	tl := &Timeline{
		SessionID:     sessionID,
		Since:         since,
		Points:        make([]Point, 0, len(recs)),
		FaceEmotions:  make([]*string, 0, len(recs)),
		VoiceEmotions: make([]*string, 0, len(recs)),
		Moods:         make([]MoodPoint, 0, len(moods)),
		TotalRecords:  len(recs),
		TotalMoods:    len(moods),
	}
	for _, r := range recs {
		pt := Point{Time: r.Timestamp, Source: r.Source, Emotion: r.Emotion, Confidence: r.Confidence}
		if len(tl.Points) > 0 {
			pt.Offset = r.Timestamp.Sub(tl.Points[0].Time).Seconds()
		}
		tl.Points = append(tl.Points, pt)

		e := r.Emotion
		if r.Source == string(emotion.Face) {
			tl.FaceEmotions = append(tl.FaceEmotions, &e)
			tl.VoiceEmotions = append(tl.VoiceEmotions, nil)
		} else {
			tl.FaceEmotions = append(tl.FaceEmotions, nil)
			tl.VoiceEmotions = append(tl.VoiceEmotions, &e)
		}
	}
	for _, m := range moods {
		tl.Moods = append(tl.Moods, MoodPoint{Time: m.Timestamp, Mood: m.OverallMood, Confidence: m.Confidence, Rule: m.Rule})
	}
	tl.Frequency = frequency(tl.Points)

	tl.Windows = p.window(tl.Points)
	for i := range tl.Windows {
		p.aggregate(&tl.Windows[i])
		tl.Windows[i].Vector = p.toVector(tl.Windows[i])
	}
	return tl, nil
}
