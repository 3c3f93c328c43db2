package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/edmo-mood/config"
	"github.com/maastricht-university/edmo-mood/orchestrator"
	"github.com/maastricht-university/edmo-mood/store"
	"github.com/maastricht-university/edmo-mood/voice"
)

type blankDetector struct{}

func (blankDetector) Detect(_ context.Context, g *image.Gray) ([]image.Rectangle, error) {
	return []image.Rectangle{g.Bounds()}, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(fmt.Sprintf("file:api-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c := &config.Root{}
	c.HTTP.Mode = gin.TestMode
	c.Service.Version = "test"
	c.Voice = config.Voice{Seed: 7, ConfidenceMin: 0.7, ConfidenceSpread: 0.2}
	c.Face.Nuanced = true
	c.Timeline = config.Timeline{DefaultHours: 1, TimeWindow: 60, Overlap: 30}
	c.Paths.Outputs = t.TempDir()

	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	p := orchestrator.NewPipeline(c, st, l,
		orchestrator.WithSampler(voice.NewSampler(7)),
		orchestrator.WithDetector(blankDetector{}),
	)
	r, err := Build(Options{Config: c, Pipeline: p, Store: st, Logger: l})
	require.NoError(t, err)
	return r, st
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestBuildRequiresDependencies(t *testing.T) {
	_, err := Build(Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	w, body := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestSaveAndListEmotions(t *testing.T) {
	r, _ := newTestServer(t)

	w, body := do(t, r, http.MethodPost, "/api/emotions", map[string]any{
		"emotion": "happy", "confidence": 0.9, "session_id": "s1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.NotNil(t, body["id"])

	w, body = do(t, r, http.MethodPost, "/api/emotions", map[string]any{
		"emotion": "Calm", "confidence": 0.8, "session_id": "s1", "source": "voice",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = do(t, r, http.MethodGet, "/api/emotions?session_id=s1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])
	data := body["data"].([]any)
	assert.Equal(t, "Calm", data[0].(map[string]any)["emotion"])
	assert.Equal(t, "Happy", data[1].(map[string]any)["emotion"])
}

func TestSaveEmotionValidation(t *testing.T) {
	r, _ := newTestServer(t)
	w, body := do(t, r, http.MethodPost, "/api/emotions", map[string]any{"emotion": "Ecstatic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", body["status"])

	w, _ = do(t, r, http.MethodPost, "/api/emotions", map[string]any{"emotion": "Sad", "source": "text"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/emotions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoiceAnalysisFusesWithFace(t *testing.T) {
	r, _ := newTestServer(t)

	w, body := do(t, r, http.MethodPost, "/api/voice-analysis", map[string]any{
		"session_id":     "s1",
		"audio_features": map[string]any{"pitch": 0.8, "volume": 0.85, "speechRate": 0.85},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Excited", body["voice_emotion"])
	assert.Nil(t, body["face_emotion"])
	assert.Equal(t, "Excited", body["overall_mood"])
	assert.Equal(t, "single_modality", body["rule"])
	conf := body["confidence"].(float64)
	assert.GreaterOrEqual(t, conf, 0.7)
	assert.Less(t, conf, 0.9)

	w, _ = do(t, r, http.MethodPost, "/api/face-analysis", map[string]any{
		"session_id": "s1",
		"faces":      []map[string]any{{"avg_intensity": 125, "std_intensity": 50, "symmetry": 0.1, "edge_density": 0.12}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = do(t, r, http.MethodPost, "/api/voice-analysis", map[string]any{
		"session_id":     "s1",
		"audio_features": map[string]any{"pitch": 0.2, "volume": 0.75, "speechRate": 0.85},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Angry", body["voice_emotion"])
	assert.Equal(t, "Calm", body["face_emotion"])
	assert.Equal(t, "Angry", body["overall_mood"])
	assert.Equal(t, "neutral_yields", body["rule"])

	w, body = do(t, r, http.MethodGet, "/api/combined-mood?session_id=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mood := body["data"].(map[string]any)
	assert.Equal(t, "Angry", mood["overall_mood"])
	assert.Equal(t, "Calm", mood["face_emotion"])
}

func TestFaceAnalysisNoFace(t *testing.T) {
	r, st := newTestServer(t)
	w, body := do(t, r, http.MethodPost, "/api/face-analysis", map[string]any{"session_id": "s2", "faces": []any{}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No face detected", body["emotion"])
	assert.Equal(t, "no_face", body["sentinel"])
	assert.Equal(t, false, body["recorded"])

	recs, err := st.ListEmotions(t.Context(), "s2", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFaceAnalysisFrameUpload(t *testing.T) {
	r, _ := newTestServer(t)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 24, 24))))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("session_id", "s3"))
	fw, err := mw.CreateFormFile("frame", "frame.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/face-analysis?annotate=true", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "Neutral", out["emotion"])
	assert.Equal(t, "live", out["mode"])
	raw, err := base64.StdEncoding.DecodeString(out["annotated_frame"].(string))
	require.NoError(t, err)
	overlay, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 24, 24), overlay.Bounds())
}

func TestFaceAnalysisRejectsGarbageFrame(t *testing.T) {
	r, _ := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("frame", "frame.bin")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not an image"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/face-analysis", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCombinedMoodRequiresSession(t *testing.T) {
	r, _ := newTestServer(t)
	w, body := do(t, r, http.MethodGet, "/api/combined-mood", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Session ID is required", body["message"])

	w, body = do(t, r, http.MethodGet, "/api/combined-mood?session_id=nobody", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["data"])
}

func TestEmotionTimeline(t *testing.T) {
	r, _ := newTestServer(t)
	w, _ := do(t, r, http.MethodGet, "/api/emotion-timeline", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 2; i++ {
		w, _ = do(t, r, http.MethodPost, "/api/voice-analysis", map[string]any{
			"session_id":     "s4",
			"audio_features": map[string]any{"pitch": 0.8, "volume": 0.85, "speechRate": 0.85},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := do(t, r, http.MethodGet, "/api/emotion-timeline?session_id=s4&hours=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["total_records"])
	assert.EqualValues(t, 2, data["total_moods"])
	freq := data["emotion_frequency"].([]any)
	require.Len(t, freq, 1)
	assert.Equal(t, "Excited", freq[0].(map[string]any)["emotion"])

	w, _ = do(t, r, http.MethodGet, "/api/emotion-timeline?session_id=s4&hours=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaxonomy(t *testing.T) {
	r, _ := newTestServer(t)
	w, body := do(t, r, http.MethodGet, "/api/taxonomy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 43, body["count"])
	fams := body["data"].([]any)
	require.Len(t, fams, 7)
	first := fams[0].(map[string]any)
	assert.Equal(t, "Happiness", first["family"])
	assert.Equal(t, "positive", first["valence"])
}

func TestMetricsBeforeInit(t *testing.T) {
	r, _ := newTestServer(t)
	w, _ := do(t, r, http.MethodGet, "/metrics", nil)
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, w.Code)
}

func TestSaveEmotionClampsConfidence(t *testing.T) {
	r, _ := newTestServer(t)
	w, _ := do(t, r, http.MethodPost, "/api/emotions", map[string]any{
		"emotion": "Happy", "confidence": 7.5, "session_id": "s5",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/emotions", map[string]any{
		"emotion": "Sad", "confidence": -3, "session_id": "s5",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := do(t, r, http.MethodGet, "/api/emotions?session_id=s5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	got := map[string]float64{}
	for _, d := range data {
		rec := d.(map[string]any)
		got[rec["emotion"].(string)] = rec["confidence"].(float64)
	}
	assert.Equal(t, map[string]float64{"Happy": 1, "Sad": 0}, got)
}

func TestEndSession(t *testing.T) {
	r, _ := newTestServer(t)
	w, _ := do(t, r, http.MethodDelete, "/api/sessions/s6", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/voice-analysis", map[string]any{
		"session_id":     "s6",
		"audio_features": map[string]any{"pitch": 0.8, "volume": 0.85, "speechRate": 0.85},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := do(t, r, http.MethodDelete, "/api/sessions/s6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s6", body["session_id"])

	w, _ = do(t, r, http.MethodDelete, "/api/sessions/s6", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
