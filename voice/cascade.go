package voice

import (
	"math"

	"github.com/maastricht-university/edmo-mood/emotion"
)

// Features is the normalized voice vector. All fields are expected in [0,1].
type Features struct {
	Pitch             float64 `json:"pitch" yaml:"pitch"`
	Volume            float64 `json:"volume" yaml:"volume"`
	SpeechRate        float64 `json:"speechRate" yaml:"speech_rate"`
	PitchVariability  float64 `json:"pitchVariability" yaml:"pitch_variability"`
	VolumeConsistency float64 `json:"volumeConsistency" yaml:"volume_consistency"`
}

// Clamp pulls every field into [0,1]; NaN becomes 0.
func (f Features) Clamp() Features {
	return Features{
		Pitch:             unit(f.Pitch),
		Volume:            unit(f.Volume),
		SpeechRate:        unit(f.SpeechRate),
		PitchVariability:  unit(f.PitchVariability),
		VolumeConsistency: unit(f.VolumeConsistency),
	}
}

func unit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

type rule struct {
	name  string
	when  func(Features) bool
	label emotion.Label
}

type branch struct {
	name  string
	when  func(Features) bool
	rules []rule
}

func always(Features) bool { return true }

func between(v, lo, hi float64) bool { return lo < v && v < hi }

// cascade is evaluated top to bottom; the first branch whose predicate holds
// owns the input and its first matching rule decides the label.
var cascade = []branch{
	{
		name: "happiness",
		when: func(f Features) bool { return f.Pitch > 0.7 },
		rules: []rule{
			{"very high energy", func(f Features) bool { return f.Volume > 0.8 && f.SpeechRate > 0.8 }, emotion.Excited},
			{"clear happiness", func(f Features) bool { return f.Volume > 0.7 && f.SpeechRate > 0.7 }, emotion.Joyful},
			{"playful", func(f Features) bool { return f.Volume > 0.6 && f.PitchVariability > 0.3 }, emotion.Amused},
			{"confident happiness", func(f Features) bool { return f.Volume > 0.5 && f.SpeechRate > 0.6 }, emotion.Proud},
			{"subdued", always, emotion.Content},
		},
	},
	{
		name: "surprise",
		when: func(f Features) bool { return f.Pitch > 0.6 && f.Volume > 0.6 && f.PitchVariability > 0.3 },
		rules: []rule{
			{"strong", func(f Features) bool { return f.SpeechRate > 0.7 }, emotion.Astonished},
			{"positive", func(f Features) bool { return f.SpeechRate > 0.5 }, emotion.Amazed},
			{"confused", func(f Features) bool { return f.SpeechRate < 0.4 }, emotion.Perplexed},
			{"general", always, emotion.Surprised},
		},
	},
	{
		name: "anger",
		when: func(f Features) bool { return f.Pitch < 0.5 && f.Volume > 0.7 },
		rules: []rule{
			{"full", func(f Features) bool { return f.SpeechRate > 0.8 }, emotion.Angry},
			{"specific cause", func(f Features) bool { return f.SpeechRate > 0.7 }, emotion.Frustrated},
			{"righteous", func(f Features) bool { return f.Pitch < 0.3 }, emotion.Indignant},
			{"mild", always, emotion.Irritated},
		},
	},
	{
		name: "sadness",
		when: func(f Features) bool { return f.Pitch < 0.4 && f.Volume < 0.5 },
		rules: []rule{
			{"deep", func(f Features) bool { return f.SpeechRate < 0.3 }, emotion.Grieving},
			{"persistent", func(f Features) bool { return f.SpeechRate < 0.4 && f.Volume < 0.3 }, emotion.Melancholic},
			{"specific cause", func(f Features) bool { return f.Pitch < 0.3 }, emotion.Disappointed},
			{"general", always, emotion.Sad},
		},
	},
	{
		name: "fear",
		when: func(f Features) bool { return f.PitchVariability > 0.35 && f.Volume < 0.6 },
		rules: []rule{
			{"nervous energy", func(f Features) bool { return f.SpeechRate > 0.7 }, emotion.Anxious},
			{"specific concern", func(f Features) bool { return f.SpeechRate > 0.5 }, emotion.Worried},
			{"self-doubt", func(f Features) bool { return f.Volume < 0.4 }, emotion.Insecure},
			{"general", always, emotion.Fearful},
		},
	},
	{
		name: "calm",
		when: func(f Features) bool { return f.VolumeConsistency > 0.5 && between(f.Pitch, 0.4, 0.6) },
		rules: []rule{
			{"contemplative", func(f Features) bool { return between(f.Volume, 0.4, 0.6) && between(f.SpeechRate, 0.4, 0.6) }, emotion.Thoughtful},
			{"self-assured", func(f Features) bool { return f.Volume > 0.5 && f.SpeechRate > 0.5 }, emotion.Confident},
			{"relaxed", func(f Features) bool { return f.Volume < 0.5 && f.SpeechRate < 0.5 }, emotion.Calm},
			{"engaged", always, emotion.Interested},
		},
	},
	{
		name: "complex",
		when: func(f Features) bool { return between(f.Pitch, 0.4, 0.6) },
		rules: []rule{
			{"disbelieving", func(f Features) bool { return f.Volume > 0.6 && f.SpeechRate < 0.5 }, emotion.Skeptical},
			{"hesitant", func(f Features) bool { return f.Volume < 0.5 && f.SpeechRate > 0.6 }, emotion.Uncertain},
			{"disengaged", func(f Features) bool { return f.PitchVariability < 0.2 }, emotion.Bored},
			{"split attention", func(f Features) bool { return f.VolumeConsistency < 0.3 }, emotion.Distracted},
			{"baseline", always, emotion.Neutral},
		},
	},
	{
		name:  "default",
		when:  always,
		rules: []rule{{"fallback", always, emotion.Neutral}},
	},
}

// Decision records which branch and rule produced a label.
type Decision struct {
	Branch string        `json:"branch"`
	Rule   string        `json:"rule"`
	Label  emotion.Label `json:"label"`
}

// Trace clamps f and walks the cascade, reporting the branch and rule that fired.
func Trace(f Features) Decision {
	f = f.Clamp()
	for _, b := range cascade {
		if !b.when(f) {
			continue
		}
		for _, r := range b.rules {
			if r.when(f) {
				return Decision{Branch: b.name, Rule: r.name, Label: r.label}
			}
		}
	}
	// unreachable: the default branch always matches
	return Decision{Branch: "default", Rule: "fallback", Label: emotion.Neutral}
}

// Classify maps a voice vector to one label. It is a pure function of f.
func Classify(f Features) emotion.Label {
	return Trace(f).Label
}
