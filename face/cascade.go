package face

import (
	"math"

	"github.com/maastricht-university/edmo-mood/emotion"
)

// Stats are the coarse measurements taken from one face region.
// Intensities are on the 0-255 grayscale; symmetry and edge density in [0,1].
type Stats struct {
	AvgIntensity float64 `json:"avg_intensity" yaml:"avg_intensity"`
	StdIntensity float64 `json:"std_intensity" yaml:"std_intensity"`
	Symmetry     float64 `json:"symmetry" yaml:"symmetry"`
	EdgeDensity  float64 `json:"edge_density" yaml:"edge_density"`
}

func (s Stats) Clamp() Stats {
	return Stats{
		AvgIntensity: bound(s.AvgIntensity, 255),
		StdIntensity: bound(s.StdIntensity, 255),
		Symmetry:     bound(s.Symmetry, 1),
		EdgeDensity:  bound(s.EdgeDensity, 1),
	}
}

func bound(v, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > hi:
		return hi
	}
	return v
}

type leaf struct {
	name       string
	when       func(Stats) bool
	candidates [3]emotion.Label
}

func active(s Stats) bool     { return s.EdgeDensity > 0.15 }
func expressive(s Stats) bool { return s.StdIntensity > 60 }

// leaves is the nested decision tree flattened in evaluation order. Each
// predicate restates its full path so the order only matters within siblings.
var leaves = []leaf{
	{"active/expressive/bright/symmetric",
		func(s Stats) bool { return active(s) && expressive(s) && s.AvgIntensity > 130 && s.Symmetry < 0.15 },
		[3]emotion.Label{emotion.Joyful, emotion.Excited, emotion.Proud}},
	{"active/expressive/bright/asymmetric",
		func(s Stats) bool { return active(s) && expressive(s) && s.AvgIntensity > 130 },
		[3]emotion.Label{emotion.Amused, emotion.Grateful, emotion.Astonished}},
	{"active/expressive/medium/symmetric",
		func(s Stats) bool { return active(s) && expressive(s) && s.AvgIntensity > 90 && s.Symmetry < 0.2 },
		[3]emotion.Label{emotion.Confident, emotion.Interested, emotion.Curious}},
	{"active/expressive/medium/asymmetric",
		func(s Stats) bool { return active(s) && expressive(s) && s.AvgIntensity > 90 },
		[3]emotion.Label{emotion.Amazed, emotion.Perplexed, emotion.Confused}},
	{"active/expressive/dark/symmetric",
		func(s Stats) bool { return active(s) && expressive(s) && s.Symmetry < 0.2 },
		[3]emotion.Label{emotion.Angry, emotion.Indignant, emotion.Frustrated}},
	{"active/expressive/dark/asymmetric",
		func(s Stats) bool { return active(s) && expressive(s) },
		[3]emotion.Label{emotion.Irritated, emotion.Defensive, emotion.Resentful}},
	{"active/flat/bright",
		func(s Stats) bool { return active(s) && s.AvgIntensity > 120 },
		[3]emotion.Label{emotion.Content, emotion.Hopeful, emotion.Thoughtful}},
	{"active/flat/medium",
		func(s Stats) bool { return active(s) && s.AvgIntensity > 90 },
		[3]emotion.Label{emotion.Uncertain, emotion.Anxious, emotion.Worried}},
	{"active/flat/dark",
		active,
		[3]emotion.Label{emotion.Melancholic, emotion.Disappointed, emotion.Sad}},
	{"still/some/bright",
		func(s Stats) bool { return s.StdIntensity > 40 && s.AvgIntensity > 120 },
		[3]emotion.Label{emotion.Content, emotion.Calm, emotion.Neutral}},
	{"still/some/medium",
		func(s Stats) bool { return s.StdIntensity > 40 && s.AvgIntensity > 90 },
		[3]emotion.Label{emotion.Thoughtful, emotion.Nostalgic, emotion.Distracted}},
	{"still/some/dark",
		func(s Stats) bool { return s.StdIntensity > 40 },
		[3]emotion.Label{emotion.Lonely, emotion.Bored, emotion.Insecure}},
	{"still/flat",
		func(Stats) bool { return true },
		[3]emotion.Label{emotion.Neutral, emotion.Calm, emotion.Distracted}},
}

// Candidates returns the leaf reached by s and its three candidate labels.
func Candidates(s Stats) (string, [3]emotion.Label) {
	s = s.Clamp()
	for _, l := range leaves {
		if l.when(s) {
			return l.name, l.candidates
		}
	}
	last := leaves[len(leaves)-1]
	return last.name, last.candidates
}

// PickIndex selects among the candidates: min(2, floor(edge*10) mod 3).
func PickIndex(edge float64) int {
	edge = bound(edge, 1)
	i := int(math.Mod(edge*10, 3))
	return min(2, i)
}

// ClassifyNuanced runs the candidate cascade and picks one label.
func ClassifyNuanced(s Stats) emotion.Label {
	s = s.Clamp()
	_, c := Candidates(s)
	return c[PickIndex(s.EdgeDensity)]
}

// ClassifyBasic is the coarse three-label mode.
func ClassifyBasic(s Stats) emotion.Label {
	s = s.Clamp()
	switch {
	case s.StdIntensity > 50 && s.AvgIntensity > 120:
		return emotion.Happy
	case s.StdIntensity > 50:
		return emotion.Angry
	}
	return emotion.Neutral
}
