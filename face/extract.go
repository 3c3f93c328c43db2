package face

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

var ErrEmptyRegion = errors.New("face: empty region")

// Canny hysteresis thresholds on the L1 Sobel magnitude.
const (
	edgeLow  = 100
	edgeHigh = 200
)

// Grayscale converts img to 8-bit luminance. A *image.Gray is returned as is.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g
}

// Extract measures the part of r that lies inside gray.
func Extract(gray *image.Gray, r image.Rectangle) (Stats, error) {
	r = r.Intersect(gray.Bounds())
	if r.Dx() < 2 || r.Dy() < 1 {
		return Stats{}, fmt.Errorf("%w: %v", ErrEmptyRegion, r)
	}

	w, h := r.Dx(), r.Dy()
	px := make([]float64, 0, w*h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			px = append(px, float64(gray.GrayAt(x, y).Y))
		}
	}
	mean, std := stat.PopMeanStdDev(px, nil)

	return Stats{
		AvgIntensity: mean,
		StdIntensity: std,
		Symmetry:     symmetry(px, w, h),
		EdgeDensity:  edgeDensity(px, w, h),
	}.Clamp(), nil
}

// symmetry is the mean absolute difference between the left half and the
// mirrored right half, scaled to [0,1]. Odd widths drop the middle column.
func symmetry(px []float64, w, h int) float64 {
	half := w / 2
	diff := make([]float64, 0, half*h)
	for y := 0; y < h; y++ {
		row := px[y*w : (y+1)*w]
		for x := 0; x < half; x++ {
			diff = append(diff, math.Abs(row[x]-row[w-1-x]))
		}
	}
	return stat.Mean(diff, nil) / 255
}

// edgeDensity is the share of pixels marked by a Canny style detector:
// Sobel gradients, non-maximum suppression and hysteresis thresholding.
func edgeDensity(px []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	at := func(x, y int) float64 { return px[y*w+x] }

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)
			dir[i] = sector(gx, gy)
		}
	}

	const (
		none uint8 = iota
		weak
		strong
	)
	class := make([]uint8, w*h)
	var stack []int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= edgeLow {
				continue
			}
			var a, b float64
			switch dir[i] {
			case 0:
				a, b = mag[i-1], mag[i+1]
			case 1:
				a, b = mag[i-w-1], mag[i+w+1]
			case 2:
				a, b = mag[i-w], mag[i+w]
			default:
				a, b = mag[i-w+1], mag[i+w-1]
			}
			if m < a || m < b {
				continue
			}
			if m > edgeHigh {
				class[i] = strong
				stack = append(stack, i)
			} else {
				class[i] = weak
			}
		}
	}

	// promote weak pixels connected to a strong one
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range []int{-w - 1, -w, -w + 1, -1, 1, w - 1, w, w + 1} {
			j := i + d
			if j >= 0 && j < len(class) && class[j] == weak {
				class[j] = strong
				stack = append(stack, j)
			}
		}
	}

	n := 0
	for _, c := range class {
		if c == strong {
			n++
		}
	}
	return float64(n) / float64(w*h)
}

// sector quantizes the gradient direction into 0°, 45°, 90° and 135° bins.
func sector(gx, gy float64) uint8 {
	deg := math.Atan2(gy, gx) * 180 / math.Pi
	if deg < 0 {
		deg += 180
	}
	switch {
	case deg < 22.5 || deg >= 157.5:
		return 0
	case deg < 67.5:
		return 1
	case deg < 112.5:
		return 2
	}
	return 3
}
