package clients

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// --- Voice features (/features) ---
type VoiceFeaturesResp struct {
	Pitch             float64  `json:"pitch"`
	Volume            float64  `json:"volume"`
	SpeechRate        float64  `json:"speech_rate"`
	PitchVariability  *float64 `json:"pitch_variability,omitempty"`
	VolumeConsistency *float64 `json:"volume_consistency,omitempty"`
}

// VoiceFeatures uploads an audio clip and returns its normalized features.
func (h *HTTP) VoiceFeatures(ctx context.Context, url, audioPath string) (*VoiceFeaturesResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/features", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out VoiceFeaturesResp
	if err := h.do(req, "voice features", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
