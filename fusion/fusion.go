// Package fusion combines the latest face and voice labels of a session into
// one overall mood.
package fusion

import (
	"math"

	"github.com/maastricht-university/edmo-mood/emotion"
)

// Rule names the fusion rule that produced a result.
type Rule string

const (
	Agreement         Rule = "agreement"
	SameFamily        Rule = "same_family"
	PositiveValence   Rule = "positive_valence"
	NegativeDominance Rule = "negative_dominance"
	NeutralYields     Rule = "neutral_yields"
	ComplexWins       Rule = "complex_wins"
	MixedFallback     Rule = "mixed_fallback"
	SingleModality    Rule = "single_modality"
)

type rule struct {
	name    Rule
	applies func(face, voice emotion.Label) bool
	pick    func(face, voice emotion.Label) emotion.Label
}

// dominance ranks negative families: Anger over Fear over Sadness.
var dominance = map[emotion.Family]int{
	emotion.FamilyAnger:   3,
	emotion.FamilyFear:    2,
	emotion.FamilySadness: 1,
}

func positive(l emotion.Label) bool { return l.Family().Valence() == emotion.Positive }
func negative(l emotion.Label) bool { return l.Family().Valence() == emotion.Negative }

// exactlyOne reports whether exactly one of face and voice is in family f.
func exactlyOne(f emotion.Family) func(face, voice emotion.Label) bool {
	return func(face, voice emotion.Label) bool {
		return (face.Family() == f) != (voice.Family() == f)
	}
}

var rules = []rule{
	{
		name:    Agreement,
		applies: func(face, voice emotion.Label) bool { return face == voice },
		pick:    func(face, _ emotion.Label) emotion.Label { return face },
	},
	{
		name:    SameFamily,
		applies: func(face, voice emotion.Label) bool { return face.Family() == voice.Family() },
		pick: func(face, voice emotion.Label) emotion.Label {
			if face.IsBasic() {
				return voice
			}
			return face
		},
	},
	{
		name:    PositiveValence,
		applies: func(face, voice emotion.Label) bool { return positive(face) && positive(voice) },
		pick: func(face, voice emotion.Label) emotion.Label {
			switch {
			case voice.Family() == emotion.FamilyHappiness:
				return voice
			case face.Family() == emotion.FamilyHappiness:
				return face
			case voice.Family() == emotion.FamilySurprise:
				return voice
			}
			return face
		},
	},
	{
		name:    NegativeDominance,
		applies: func(face, voice emotion.Label) bool { return negative(face) && negative(voice) },
		pick: func(face, voice emotion.Label) emotion.Label {
			if dominance[face.Family()] > dominance[voice.Family()] {
				return face
			}
			return voice
		},
	},
	{
		name:    NeutralYields,
		applies: exactlyOne(emotion.FamilyNeutral),
		pick: func(face, voice emotion.Label) emotion.Label {
			if face.Family() == emotion.FamilyNeutral {
				return voice
			}
			return face
		},
	},
	{
		name:    ComplexWins,
		applies: exactlyOne(emotion.FamilyComplex),
		pick: func(face, voice emotion.Label) emotion.Label {
			if face.Family() == emotion.FamilyComplex {
				return face
			}
			return voice
		},
	},
	{
		name:    MixedFallback,
		applies: func(emotion.Label, emotion.Label) bool { return true },
		pick: func(face, voice emotion.Label) emotion.Label {
			if face.IsBasic() {
				return face
			}
			return voice
		},
	},
}

// Combine fuses two present labels. Rules are tried in order and the first
// one that applies decides.
func Combine(face, voice emotion.Label) (emotion.Label, Rule) {
	for _, r := range rules {
		if r.applies(face, voice) {
			return r.pick(face, voice), r.name
		}
	}
	// MixedFallback always applies
	return voice, MixedFallback
}

// Estimate is one modality's label with its confidence.
type Estimate struct {
	Label      emotion.Label `json:"label"`
	Confidence float64       `json:"confidence"`
}

type Result struct {
	FaceLabel  *emotion.Label `json:"face_label,omitempty"`
	VoiceLabel *emotion.Label `json:"voice_label,omitempty"`
	Overall    emotion.Label  `json:"overall_mood"`
	Confidence float64        `json:"confidence"`
	Rule       Rule           `json:"rule"`
}

// Fuse combines whichever estimates are present. A nil estimate, or one whose
// label is outside the vocabulary, counts as absent. With one side present its
// label passes through unmodified; with none, ok is false.
func Fuse(face, voice *Estimate) (Result, bool) {
	face, voice = usable(face), usable(voice)
	switch {
	case face == nil && voice == nil:
		return Result{}, false
	case face == nil:
		return Result{VoiceLabel: ptr(voice.Label), Overall: voice.Label, Confidence: unit(voice.Confidence), Rule: SingleModality}, true
	case voice == nil:
		return Result{FaceLabel: ptr(face.Label), Overall: face.Label, Confidence: unit(face.Confidence), Rule: SingleModality}, true
	}

	overall, r := Combine(face.Label, voice.Label)
	return Result{
		FaceLabel:  ptr(face.Label),
		VoiceLabel: ptr(voice.Label),
		Overall:    overall,
		Confidence: (unit(face.Confidence) + unit(voice.Confidence)) / 2,
		Rule:       r,
	}, true
}

func usable(e *Estimate) *Estimate {
	if e == nil || !e.Label.Valid() {
		return nil
	}
	return e
}

func ptr(l emotion.Label) *emotion.Label { return &l }

// ClampConfidence pulls v into [0,1]; NaN becomes 0.
func ClampConfidence(v float64) float64 { return unit(v) }

func unit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
