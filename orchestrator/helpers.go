package orchestrator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/maastricht-university/edmo-mood/emotion"
)

// window slices points into overlapping windows of TimeWindow seconds,
// advancing by TimeWindow-Overlap.
func (p *Pipeline) window(pts []Point) []Window {
	if len(pts) == 0 {
		return nil
	}
	// compute session bounds
	start := pts[0].Offset
	end := pts[len(pts)-1].Offset
	w := float64(p.cfg.Timeline.TimeWindow)
	o := float64(p.cfg.Timeline.Overlap)
	step := w - o
	if step <= 0 {
		step = w
	}

	var out []Window
	for t0 := start; ; t0 += step {
		t1 := math.Min(t0+w, end)
		var slice []Point
		for _, pt := range pts {
			// half open, except the final window keeps the last point
			if pt.Offset < t0 || pt.Offset > t1 || (pt.Offset == t1 && t1 < end) {
				continue
			}
			slice = append(slice, pt)
		}
		out = append(out, Window{T0: t0, T1: t1, Points: slice})
		if t0+w >= end {
			break
		}
	}
	return out
}

func (p *Pipeline) aggregate(w *Window) {
	w.Counts = map[emotion.Label]int{}
	w.FamilyShares = map[emotion.Family]float64{}
	if len(w.Points) == 0 {
		return
	}
	conf := make([]float64, 0, len(w.Points))
	for _, pt := range w.Points {
		l := emotion.Label(pt.Emotion)
		w.Counts[l]++
		w.FamilyShares[l.Family()]++
		conf = append(conf, pt.Confidence)
	}
	w.MeanConfidence = stat.Mean(conf, nil)
	n := float64(len(w.Points))
	for f := range w.FamilyShares {
		w.FamilyShares[f] /= n
	}
	w.Dominant = dominant(w.Counts)
}

// toVector flattens a window into [meanConfidence, share per family...] in
// the fixed family order.
func (p *Pipeline) toVector(w Window) []float64 {
	vec := []float64{w.MeanConfidence}
	for _, f := range emotion.Families() {
		vec = append(vec, w.FamilyShares[f])
	}
	return vec
}

// dominant is the most counted label; ties go to the label earlier in the
// vocabulary order.
func dominant(counts map[emotion.Label]int) emotion.Label {
	var best emotion.Label
	bestN := 0
	for _, l := range emotion.All() {
		if n := counts[l]; n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

// frequency counts emotions, most frequent first, ties by first appearance.
func frequency(pts []Point) []Frequency {
	idx := map[string]int{}
	var out []Frequency
	for _, pt := range pts {
		i, ok := idx[pt.Emotion]
		if !ok {
			i = len(out)
			idx[pt.Emotion] = i
			out = append(out, Frequency{Emotion: pt.Emotion})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// familyShares is the share of each family across pts.
func familyShares(pts []Point) map[emotion.Family]float64 {
	out := map[emotion.Family]float64{}
	if len(pts) == 0 {
		return out
	}
	for _, pt := range pts {
		out[emotion.Label(pt.Emotion).Family()]++
	}
	for f := range out {
		out[f] /= float64(len(pts))
	}
	return out
}
