package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maastricht-university/edmo-mood/clients"
	cfg "github.com/maastricht-university/edmo-mood/config"
	"github.com/maastricht-university/edmo-mood/emotion"
	"github.com/maastricht-university/edmo-mood/face"
	"github.com/maastricht-university/edmo-mood/fusion"
	"github.com/maastricht-university/edmo-mood/store"
	"github.com/maastricht-university/edmo-mood/voice"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(30 * time.Second)
	return c.t
}

type fixedDetector struct{ rects []image.Rectangle }

func (d fixedDetector) Detect(context.Context, *image.Gray) ([]image.Rectangle, error) {
	return d.rects, nil
}

func testConfig(t *testing.T) *cfg.Root {
	t.Helper()
	c := &cfg.Root{}
	c.Voice = cfg.Voice{Seed: 1, ConfidenceMin: 0.7, ConfidenceSpread: 0.2}
	c.Face = cfg.Face{Nuanced: true}
	c.Timeline = cfg.Timeline{DefaultHours: 1, TimeWindow: 60, Overlap: 30}
	c.Paths.Outputs = t.TempDir()
	return c
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:orch-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	s, err := store.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestPipeline(t *testing.T, c *cfg.Root, opts ...Option) (*Pipeline, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	clock := &stepClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	opts = append([]Option{WithClock(clock.now)}, opts...)
	return NewPipeline(c, s, l, opts...), s
}

func excited() voice.Input {
	pv, vc := 0.25, 0.4
	return voice.Input{Pitch: 0.8, Volume: 0.85, SpeechRate: 0.85, PitchVariability: &pv, VolumeConsistency: &vc}
}

func TestVoiceOnlyPassesThrough(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, testConfig(t))

	out, err := p.ClassifyVoice(ctx, "room-1", excited())
	require.NoError(t, err)
	assert.Equal(t, emotion.Excited, out.Voice.Label)
	assert.Nil(t, out.FaceLabel)
	require.NotNil(t, out.Mood)
	assert.Equal(t, emotion.Excited, out.Mood.Overall)
	assert.Equal(t, fusion.SingleModality, out.Mood.Rule)
	assert.Equal(t, out.Voice.Confidence, out.Mood.Confidence)

	m, err := s.LatestMood(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Excited", m.OverallMood)
	assert.Empty(t, m.FaceEmotion)
}

func TestFaceThenVoiceFuses(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, testConfig(t))

	fo, err := p.ClassifyFace(ctx, "room-1", []face.Stats{{AvgIntensity: 125, StdIntensity: 50, Symmetry: 0.1, EdgeDensity: 0.12}})
	require.NoError(t, err)
	assert.True(t, fo.Recorded)
	assert.Equal(t, emotion.Calm, fo.Face.Label)

	vo, err := p.ClassifyVoice(ctx, "room-1", excited())
	require.NoError(t, err)
	require.NotNil(t, vo.FaceLabel)
	assert.Equal(t, emotion.Calm, *vo.FaceLabel)
	assert.Equal(t, emotion.Excited, vo.Mood.Overall)
	assert.Equal(t, fusion.NeutralYields, vo.Mood.Rule)
	assert.InDelta(t, (fo.Confidence+vo.Voice.Confidence)/2, vo.Mood.Confidence, 1e-9)

	recs, err := s.ListEmotions(ctx, "room-1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSentinelsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, testConfig(t))

	fo, err := p.ClassifyFace(ctx, "room-1", nil)
	require.NoError(t, err)
	assert.False(t, fo.Recorded)
	assert.Equal(t, face.SentinelNoFace, fo.Face.Sentinel)

	_, err = s.LatestEmotion(ctx, "room-1", "face")
	assert.ErrorIs(t, err, store.ErrNotFound)

	vo, err := p.ClassifyVoice(ctx, "room-1", excited())
	require.NoError(t, err)
	assert.Nil(t, vo.FaceLabel)
}

func TestStoredFaceIsUsedForNewSession(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, testConfig(t))
	require.NoError(t, s.SaveEmotion(ctx, &store.EmotionRecord{
		Emotion: "Sad", Confidence: 0.8, SessionID: "room-9", Source: "face",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}))

	angry := voice.Input{Pitch: 0.2, Volume: 0.75, SpeechRate: 0.85}
	vo, err := p.ClassifyVoice(ctx, "room-9", angry)
	require.NoError(t, err)
	assert.Equal(t, emotion.Angry, vo.Voice.Label)
	assert.Equal(t, emotion.Angry, vo.Mood.Overall)
	assert.Equal(t, fusion.NegativeDominance, vo.Mood.Rule)
}

func TestSessionsOwnTheirSimulationCursor(t *testing.T) {
	c := testConfig(t)
	c.Face.Simulation = true
	p, _ := newTestPipeline(t, c)
	ctx := context.Background()

	a1, err := p.ClassifyFace(ctx, "a", nil)
	require.NoError(t, err)
	a2, err := p.ClassifyFace(ctx, "a", nil)
	require.NoError(t, err)
	b1, err := p.ClassifyFace(ctx, "b", nil)
	require.NoError(t, err)

	all := emotion.All()
	assert.Equal(t, all[0], a1.Face.Label)
	assert.Equal(t, all[1], a2.Face.Label)
	assert.Equal(t, all[0], b1.Face.Label)
	assert.False(t, a1.Recorded)
	assert.Equal(t, []string{"a", "b"}, p.Sessions().IDs())
}

func TestEmptySessionIDGetsUUID(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig(t))
	out, err := p.ClassifyVoice(context.Background(), "", excited())
	require.NoError(t, err)
	assert.Len(t, out.SessionID, 36)
}

func TestRecordRejectsUnknownLabel(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig(t))
	_, err := p.Record(context.Background(), "a", emotion.Face, "Ecstatic", 0.5)
	assert.ErrorIs(t, err, emotion.ErrUnknownLabel)

	r, err := p.Record(context.Background(), "a", emotion.Face, emotion.Curious, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "face", r.Source)
	snap := p.Session("a").Snapshot()
	require.NotNil(t, snap.Face)
	assert.Equal(t, emotion.Curious, snap.Face.Estimate.Label)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig(t))

	_, err := p.ClassifyFace(ctx, "room-1", []face.Stats{{AvgIntensity: 125, StdIntensity: 50, Symmetry: 0.1, EdgeDensity: 0.12}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = p.ClassifyVoice(ctx, "room-1", excited())
		require.NoError(t, err)
	}

	tl, err := p.Timeline(ctx, "room-1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, tl.TotalRecords)
	assert.Equal(t, 3, tl.TotalMoods)
	require.Len(t, tl.FaceEmotions, 4)
	require.Len(t, tl.VoiceEmotions, 4)
	require.NotNil(t, tl.FaceEmotions[0])
	assert.Nil(t, tl.VoiceEmotions[0])
	assert.Nil(t, tl.FaceEmotions[1])

	require.NotEmpty(t, tl.Frequency)
	assert.Equal(t, Frequency{Emotion: "Excited", Count: 3}, tl.Frequency[0])

	require.NotEmpty(t, tl.Windows)
	first := tl.Windows[0]
	assert.Equal(t, 0.0, first.T0)
	assert.Len(t, first.Vector, 1+len(emotion.Families()))
	assert.NotEmpty(t, first.Counts)

	for _, m := range tl.Moods {
		assert.Equal(t, "Excited", m.Mood)
	}
}

func TestWindowing(t *testing.T) {
	p := &Pipeline{cfg: testConfig(t)}
	pts := []Point{
		{Offset: 0, Emotion: "Calm", Confidence: 0.8},
		{Offset: 30, Emotion: "Calm", Confidence: 0.6},
		{Offset: 90, Emotion: "Angry", Confidence: 0.7},
		{Offset: 150, Emotion: "Sad", Confidence: 0.9},
	}
	ws := p.window(pts)
	require.Len(t, ws, 4)
	assert.Len(t, ws[0].Points, 2)
	assert.Len(t, ws[1].Points, 1)
	assert.Len(t, ws[3].Points, 2)

	p.aggregate(&ws[0])
	assert.Equal(t, emotion.Calm, ws[0].Dominant)
	assert.InDelta(t, 0.7, ws[0].MeanConfidence, 1e-9)
	assert.InDelta(t, 1.0, ws[0].FamilyShares[emotion.FamilyNeutral], 1e-9)

	assert.Nil(t, p.window(nil))
}

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pitch":0.8,"volume":0.85,"speech_rate":0.85,"pitch_variability":0.25,"volume_consistency":0.4}`))
	}))
	defer srv.Close()

	c := testConfig(t)
	c.Services.VoiceFeatures.URL = srv.URL
	det := fixedDetector{rects: []image.Rectangle{image.Rect(0, 0, 20, 20)}}
	p, s := newTestPipeline(t, c, WithHTTP(clients.NewHTTPWith(srv.Client())), WithDetector(det))

	dir := t.TempDir()
	audio := filepath.Join(dir, "clip.wav")
	require.NoError(t, os.WriteFile(audio, []byte("RIFF"), 0o644))
	frame := filepath.Join(dir, "frame.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))))
	require.NoError(t, os.WriteFile(frame, buf.Bytes(), 0o644))

	out, err := p.Analyze(context.Background(), "room-1", audio, frame)
	require.NoError(t, err)
	require.NotNil(t, out.Voice)
	require.NotNil(t, out.Face)
	assert.Equal(t, emotion.Excited, out.Voice.Label)
	assert.Equal(t, emotion.Neutral, out.Face.Label)
	require.NotNil(t, out.Mood)
	assert.Equal(t, emotion.Excited, out.Mood.Overall)
	assert.Equal(t, fusion.NeutralYields, out.Mood.Rule)

	recs, err := s.ListEmotions(context.Background(), "room-1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestAnalyzeNeedsInput(t *testing.T) {
	p, _ := newTestPipeline(t, testConfig(t))
	_, err := p.Analyze(context.Background(), "room-1", "", "")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	p, _ := newTestPipeline(t, c)
	_, err := p.ClassifyFace(ctx, "room-1", []face.Stats{{AvgIntensity: 125, StdIntensity: 50, Symmetry: 0.1, EdgeDensity: 0.12}})
	require.NoError(t, err)
	_, err = p.ClassifyVoice(ctx, "room-1", excited())
	require.NoError(t, err)

	ex, err := p.Export(ctx, "room-1", time.Time{})
	require.NoError(t, err)
	assert.FileExists(t, ex.TimelinePath)
	assert.FileExists(t, ex.ChartPath)

	raw, err := os.ReadFile(ex.SummaryPath)
	require.NoError(t, err)
	var sum Summary
	require.NoError(t, yaml.Unmarshal(raw, &sum))
	assert.Equal(t, "room-1", sum.SessionID)
	assert.Equal(t, 2, sum.TotalRecords)
	assert.Equal(t, "Excited", sum.LatestMood)
	assert.InDelta(t, 0.5, sum.Families["Neutral"], 1e-9)
}

func TestFrameWithoutDetectorFallsBackToSimulation(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, testConfig(t))

	fo, err := p.ClassifyFrame(ctx, "cam-1", image.NewGray(image.Rect(0, 0, 16, 16)))
	require.NoError(t, err)
	assert.Equal(t, face.Simulation, fo.Face.Mode)
	assert.Equal(t, face.SentinelSimulation, fo.Face.Sentinel)
	assert.False(t, fo.Recorded)

	fo, err = p.ClassifyFace(ctx, "cam-1", []face.Stats{{AvgIntensity: 125, StdIntensity: 50, Symmetry: 0.1, EdgeDensity: 0.12}})
	require.NoError(t, err)
	assert.Equal(t, face.Simulation, fo.Face.Mode)

	_, err = s.LatestEmotion(ctx, "cam-1", "face")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordClampsConfidence(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPipeline(t, testConfig(t))

	hi, err := p.Record(ctx, "s1", emotion.Face, emotion.Happy, 7.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, hi.Confidence)
	lo, err := p.Record(ctx, "s1", emotion.Face, emotion.Sad, -3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, lo.Confidence)

	recs, err := s.ListEmotions(ctx, "s1", 0)
	require.NoError(t, err)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}

	tl, err := p.Timeline(ctx, "s1", time.Time{})
	require.NoError(t, err)
	require.NotEmpty(t, tl.Windows)
	assert.InDelta(t, 0.5, tl.Windows[0].MeanConfidence, 1e-9)
	assert.Equal(t, 0.0, p.Session("s1").Snapshot().Face.Estimate.Confidence)
}

func TestNoFaceClearsEarlierFaceEstimate(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, testConfig(t))

	fo, err := p.ClassifyFace(ctx, "room-1", []face.Stats{{AvgIntensity: 125, StdIntensity: 50, Symmetry: 0.1, EdgeDensity: 0.12}})
	require.NoError(t, err)
	require.True(t, fo.Recorded)

	fo, err = p.ClassifyFace(ctx, "room-1", nil)
	require.NoError(t, err)
	assert.Equal(t, face.SentinelNoFace, fo.Face.Sentinel)

	// the stored Calm record must not be picked up either
	vo, err := p.ClassifyVoice(ctx, "room-1", excited())
	require.NoError(t, err)
	assert.Nil(t, vo.FaceLabel)
	require.NotNil(t, vo.Mood)
	assert.Equal(t, fusion.SingleModality, vo.Mood.Rule)

	fo, err = p.ClassifyFace(ctx, "room-1", []face.Stats{{AvgIntensity: 125, StdIntensity: 50, Symmetry: 0.1, EdgeDensity: 0.12}})
	require.NoError(t, err)
	require.True(t, fo.Recorded)
	vo, err = p.ClassifyVoice(ctx, "room-1", excited())
	require.NoError(t, err)
	require.NotNil(t, vo.FaceLabel)
	assert.Equal(t, emotion.Calm, *vo.FaceLabel)
}

func TestEndSession(t *testing.T) {
	p, s := newTestPipeline(t, testConfig(t))
	_, err := p.ClassifyVoice(context.Background(), "room-1", excited())
	require.NoError(t, err)
	require.Equal(t, 1, p.Sessions().Len())

	assert.True(t, p.EndSession("room-1"))
	assert.False(t, p.EndSession("room-1"))
	assert.Equal(t, 0, p.Sessions().Len())

	recs, err := s.ListEmotions(context.Background(), "room-1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNilLoggerDefault(t *testing.T) {
	p := NewPipeline(testConfig(t), newTestStore(t), nil)
	_, err := p.ClassifyVoice(context.Background(), "quiet", excited())
	assert.NoError(t, err)
}
