package clients

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
)

// --- Face detection (/faces) ---
type FaceBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}
type FacesResp struct {
	Faces []FaceBox `json:"faces"`
}

func (b FaceBox) Rect() image.Rectangle { return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H) }

// DetectFaces uploads frame as PNG and returns the face rectangles found.
func (h *HTTP) DetectFaces(ctx context.Context, url string, frame image.Image) ([]image.Rectangle, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("frame", "frame.png")
	if err != nil {
		return nil, err
	}
	if err := png.Encode(fw, frame); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/faces", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out FacesResp
	if err := h.do(req, "face detection", &out); err != nil {
		return nil, err
	}
	rects := make([]image.Rectangle, 0, len(out.Faces))
	for _, f := range out.Faces {
		rects = append(rects, f.Rect())
	}
	return rects, nil
}

// FaceDetector binds DetectFaces to one service URL.
type FaceDetector struct {
	HTTP *HTTP
	URL  string
}

func (d FaceDetector) Detect(ctx context.Context, frame *image.Gray) ([]image.Rectangle, error) {
	return d.HTTP.DetectFaces(ctx, d.URL, frame)
}
