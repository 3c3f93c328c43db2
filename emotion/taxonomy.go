// Package emotion holds the closed emotion vocabulary shared by the voice
// and face classifiers and by fusion: every label belongs to exactly one
// family, and seven labels are flagged as basic.
package emotion

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownLabel = errors.New("unknown emotion label")

// vocabulary is basic labels first, then nuanced variants. The order is the
// face simulation cycling order.
var vocabulary = []Label{
	Angry, Disgusted, Fearful, Happy, Neutral, Sad, Surprised,

	Joyful, Content, Excited, Proud, Grateful, Amused,
	Melancholic, Disappointed, Grieving, Lonely, Nostalgic,
	Irritated, Frustrated, Indignant, Defensive, Resentful,
	Anxious, Overwhelmed, Worried, Nervous, Insecure,
	Amazed, Confused, Astonished, Perplexed, Curious,
	Hopeful, Bored, Uncertain, Embarrassed, Confident,
	Calm, Distracted, Thoughtful, Interested, Skeptical,
}

var families = []Family{
	FamilyHappiness, FamilySadness, FamilyAnger, FamilyFear,
	FamilySurprise, FamilyNeutral, FamilyComplex,
}

var members = map[Family][]Label{
	FamilyHappiness: {Happy, Joyful, Content, Excited, Proud, Grateful, Amused},
	FamilySadness:   {Sad, Melancholic, Disappointed, Grieving, Lonely, Nostalgic},
	FamilyAnger:     {Angry, Irritated, Frustrated, Indignant, Defensive, Resentful, Disgusted},
	FamilyFear:      {Fearful, Anxious, Overwhelmed, Worried, Nervous, Insecure},
	FamilySurprise:  {Surprised, Amazed, Astonished, Curious},
	FamilyNeutral:   {Neutral, Calm, Bored, Confident},
	FamilyComplex:   {Perplexed, Confused, Uncertain, Embarrassed, Skeptical, Distracted, Thoughtful, Interested, Hopeful},
}

var basic = map[Label]bool{
	Happy: true, Sad: true, Angry: true, Fearful: true,
	Surprised: true, Neutral: true, Disgusted: true,
}

type entry struct {
	family Family
	basic  bool
}

var (
	table   map[Label]entry
	byLower map[string]Label
)

func init() {
	table = make(map[Label]entry, len(vocabulary))
	byLower = make(map[string]Label, len(vocabulary))
	for _, f := range families {
		for _, l := range members[f] {
			if prev, dup := table[l]; dup {
				panic(fmt.Sprintf("emotion: %s listed in %s and %s", l, prev.family, f))
			}
			table[l] = entry{family: f, basic: basic[l]}
		}
	}
	for _, l := range vocabulary {
		if _, ok := table[l]; !ok {
			panic(fmt.Sprintf("emotion: %s has no family", l))
		}
		byLower[strings.ToLower(string(l))] = l
	}
	if len(table) != len(vocabulary) {
		panic("emotion: family table and vocabulary disagree")
	}
}

// All returns the vocabulary in its fixed order.
func All() []Label {
	out := make([]Label, len(vocabulary))
	copy(out, vocabulary)
	return out
}

func Families() []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}

// Members returns a copy of the labels of a family in table order. A family
// with a basic label lists its primary one first; Complex has none.
func Members(f Family) []Label {
	src := members[f]
	out := make([]Label, len(src))
	copy(out, src)
	return out
}

// FamilyOf returns FamilyUnknown for labels outside the vocabulary.
func FamilyOf(l Label) Family { return table[l].family }

func IsBasic(l Label) bool { return table[l].basic }

func (l Label) Family() Family { return FamilyOf(l) }
func (l Label) IsBasic() bool  { return IsBasic(l) }
func (l Label) String() string { return string(l) }

func (l Label) Valid() bool {
	_, ok := table[l]
	return ok
}

// Parse matches s against the vocabulary ignoring case and surrounding space.
func Parse(s string) (Label, error) {
	if l, ok := byLower[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

func (f Family) Valence() Valence {
	switch f {
	case FamilyHappiness, FamilySurprise:
		return Positive
	case FamilySadness, FamilyAnger, FamilyFear:
		return Negative
	default:
		return Indistinct
	}
}

func (f Family) String() string { return string(f) }
