package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maastricht-university/edmo-mood/emotion"
	"github.com/maastricht-university/edmo-mood/face"
	"github.com/maastricht-university/edmo-mood/orchestrator"
	"github.com/maastricht-university/edmo-mood/store"
	"github.com/maastricht-university/edmo-mood/voice"
)

type emotionReq struct {
	Emotion    string  `json:"emotion" binding:"required"`
	Confidence float64 `json:"confidence"`
	SessionID  string  `json:"session_id"`
	Source     string  `json:"source"`
}

func (s *Server) saveEmotion(c *gin.Context) {
	var req emotionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid emotion payload", err)
		return
	}
	label, err := emotion.Parse(req.Emotion)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	src := emotion.Face
	switch req.Source {
	case "", string(emotion.Face):
	case string(emotion.Voice):
		src = emotion.Voice
	default:
		respondError(c, http.StatusBadRequest, "source must be face or voice", nil)
		return
	}

	rec, err := s.pipe.Record(c.Request.Context(), req.SessionID, src, label, req.Confidence)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save emotion data", err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{
		"message":    "Emotion recorded",
		"id":         rec.ID,
		"session_id": rec.SessionID,
	})
}

func (s *Server) listEmotions(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "limit must be a non-negative integer", err)
			return
		}
		limit = n
	}
	recs, err := s.rec.ListEmotions(c.Request.Context(), c.Query("session_id"), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to retrieve emotions", err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"count": len(recs), "data": recs})
}

type audioFeatures struct {
	Pitch             float64  `json:"pitch"`
	Volume            float64  `json:"volume"`
	SpeechRate        float64  `json:"speechRate"`
	PitchVariability  *float64 `json:"pitchVariability"`
	VolumeConsistency *float64 `json:"volumeConsistency"`
}

type voiceReq struct {
	SessionID     string        `json:"session_id"`
	AudioFeatures audioFeatures `json:"audio_features"`
}

func (s *Server) voiceAnalysis(c *gin.Context) {
	var req voiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid voice payload", err)
		return
	}
	f := req.AudioFeatures
	out, err := s.pipe.ClassifyVoice(c.Request.Context(), req.SessionID, voice.Input{
		Pitch:             f.Pitch,
		Volume:            f.Volume,
		SpeechRate:        f.SpeechRate,
		PitchVariability:  f.PitchVariability,
		VolumeConsistency: f.VolumeConsistency,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to analyze voice data", err)
		return
	}

	body := gin.H{
		"session_id":    out.SessionID,
		"voice_emotion": out.Voice.Label,
		"confidence":    out.Voice.Confidence,
		"face_emotion":  out.FaceLabel,
		"overall_mood":  nil,
	}
	if out.Mood != nil {
		body["overall_mood"] = out.Mood.Overall
		body["rule"] = out.Mood.Rule
	}
	respondSuccess(c, http.StatusCreated, body)
}

type faceReq struct {
	SessionID string       `json:"session_id"`
	Faces     []face.Stats `json:"faces"`
}

// faceAnalysis accepts either JSON face statistics or a multipart "frame"
// upload. With annotate=true a frame upload also returns the overlay as a
// base64 PNG.
func (s *Server) faceAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		out     *orchestrator.FaceOutcome
		overlay string
		err     error
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		fh, ferr := c.FormFile("frame")
		if ferr != nil {
			respondError(c, http.StatusBadRequest, "frame file is required", ferr)
			return
		}
		if fh.Size > face.MaxFrameBytes {
			respondError(c, http.StatusRequestEntityTooLarge, "frame too large", nil)
			return
		}
		f, ferr := fh.Open()
		if ferr != nil {
			respondError(c, http.StatusBadRequest, "frame unreadable", ferr)
			return
		}
		raw, ferr := io.ReadAll(io.LimitReader(f, face.MaxFrameBytes+1))
		f.Close()
		if ferr != nil {
			respondError(c, http.StatusBadRequest, "frame unreadable", ferr)
			return
		}
		img, _, derr := face.DecodeFrame(raw)
		switch {
		case errors.Is(derr, face.ErrFrameTooLarge):
			respondError(c, http.StatusRequestEntityTooLarge, "frame too large", derr)
			return
		case derr != nil:
			respondError(c, http.StatusBadRequest, "unsupported image", derr)
			return
		}
		out, err = s.pipe.ClassifyFrame(ctx, c.PostForm("session_id"), img)
		if err == nil && c.Query("annotate") == "true" {
			var buf bytes.Buffer
			if perr := png.Encode(&buf, face.Annotate(img, out.Face)); perr != nil {
				respondError(c, http.StatusInternalServerError, "Failed to render overlay", perr)
				return
			}
			overlay = base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	} else {
		var req faceReq
		if berr := c.ShouldBindJSON(&req); berr != nil {
			respondError(c, http.StatusBadRequest, "Invalid face payload", berr)
			return
		}
		out, err = s.pipe.ClassifyFace(ctx, req.SessionID, req.Faces)
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to analyze face data", err)
		return
	}

	body := gin.H{
		"session_id": out.SessionID,
		"emotion":    out.Face.Display(),
		"mode":       out.Face.Mode,
		"recorded":   out.Recorded,
		"faces":      out.Face.Faces,
	}
	if out.Face.Sentinel != face.SentinelNone {
		body["sentinel"] = out.Face.Sentinel
	}
	if out.Recorded {
		body["confidence"] = out.Confidence
	}
	if overlay != "" {
		body["annotated_frame"] = overlay
	}
	status := http.StatusOK
	if out.Recorded {
		status = http.StatusCreated
	}
	respondSuccess(c, status, body)
}

func (s *Server) combinedMood(c *gin.Context) {
	sid := c.Query("session_id")
	if sid == "" {
		respondError(c, http.StatusBadRequest, "Session ID is required", nil)
		return
	}
	m, err := s.rec.LatestMood(c.Request.Context(), sid)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondSuccess(c, http.StatusOK, gin.H{"data": nil, "message": "No mood analysis found for this session"})
	case err != nil:
		respondError(c, http.StatusInternalServerError, "Failed to retrieve mood analysis", err)
	default:
		respondSuccess(c, http.StatusOK, gin.H{"data": m})
	}
}

func (s *Server) emotionTimeline(c *gin.Context) {
	sid := c.Query("session_id")
	if sid == "" {
		respondError(c, http.StatusBadRequest, "Session ID is required", nil)
		return
	}
	hours := s.cfg.Timeline.DefaultHours
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "hours must be a positive integer", err)
			return
		}
		hours = n
	}
	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	tl, err := s.pipe.Timeline(c.Request.Context(), sid, since)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to retrieve emotion timeline data", err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"data": tl})
}

func (s *Server) endSession(c *gin.Context) {
	sid := c.Param("session_id")
	if !s.pipe.EndSession(sid) {
		respondError(c, http.StatusNotFound, "Session not found", nil)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "Session ended", "session_id": sid})
}

type familyView struct {
	Family  emotion.Family  `json:"family"`
	Valence emotion.Valence `json:"valence"`
	Members []memberView    `json:"members"`
}

type memberView struct {
	Label emotion.Label `json:"label"`
	Basic bool          `json:"basic"`
}

func (s *Server) taxonomy(c *gin.Context) {
	var out []familyView
	for _, f := range emotion.Families() {
		fv := familyView{Family: f, Valence: f.Valence()}
		for _, l := range emotion.Members(f) {
			fv.Members = append(fv.Members, memberView{Label: l, Basic: l.IsBasic()})
		}
		out = append(out, fv)
	}
	respondSuccess(c, http.StatusOK, gin.H{"count": len(emotion.All()), "data": out})
}
