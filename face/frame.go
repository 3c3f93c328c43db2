package face

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// MaxFrameBytes bounds uploaded frames.
const MaxFrameBytes = 8 << 20

var ErrFrameTooLarge = errors.New("face: frame too large")

// DecodeFrame decodes a png, jpeg, gif or webp frame.
func DecodeFrame(raw []byte) (image.Image, string, error) {
	if len(raw) == 0 {
		return nil, "", errors.New("face: empty frame")
	}
	if len(raw) > MaxFrameBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(raw))
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("decode frame: %w", err)
	}
	return img, format, nil
}

var (
	boxColor   = color.RGBA{0, 255, 0, 255}
	alertColor = color.RGBA{255, 0, 0, 255}
)

// Annotate copies img and draws the face boxes and labels of res on it.
func Annotate(img image.Image, res Result) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	switch {
	case res.Sentinel == SentinelNoFace:
		text(out, b.Min.X+10, b.Min.Y+30, NoFaceText, alertColor)
	case res.Sentinel == SentinelSimulation:
		text(out, b.Min.X+10, b.Min.Y+30, "Emotion: "+string(res.Label)+" (simulated)", boxColor)
	default:
		for _, f := range res.Faces {
			rect(out, f.Region, 2, boxColor)
			text(out, f.Region.Min.X, f.Region.Min.Y-10, "Emotion: "+string(f.Label), boxColor)
		}
	}
	return out
}

func rect(dst *image.RGBA, r image.Rectangle, thick int, c color.Color) {
	src := image.NewUniform(c)
	for i := 0; i < thick; i++ {
		in := r.Inset(i)
		if in.Empty() {
			return
		}
		edges := []image.Rectangle{
			image.Rect(in.Min.X, in.Min.Y, in.Max.X, in.Min.Y+1),
			image.Rect(in.Min.X, in.Max.Y-1, in.Max.X, in.Max.Y),
			image.Rect(in.Min.X, in.Min.Y, in.Min.X+1, in.Max.Y),
			image.Rect(in.Max.X-1, in.Min.Y, in.Max.X, in.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
		}
	}
}

func text(dst *image.RGBA, x, y int, s string, c color.Color) {
	if y < dst.Bounds().Min.Y+basicfont.Face7x13.Ascent {
		y = dst.Bounds().Min.Y + basicfont.Face7x13.Ascent
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
