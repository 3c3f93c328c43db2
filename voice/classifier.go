// Package voice classifies coarse acoustic features of speech into one label
// of the emotion vocabulary using an ordered threshold cascade.
package voice

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/edmo-mood/emotion"
)

// Input is what a voice analysis request carries. Pitch, volume and speech
// rate come from upstream extraction; the two derived scores are optional and
// drawn from the Sampler when absent.
type Input struct {
	Pitch             float64  `json:"pitch"`
	Volume            float64  `json:"volume"`
	SpeechRate        float64  `json:"speechRate"`
	PitchVariability  *float64 `json:"pitchVariability,omitempty"`
	VolumeConsistency *float64 `json:"volumeConsistency,omitempty"`
}

type Result struct {
	Label      emotion.Label `json:"label"`
	Confidence float64       `json:"confidence"`
	Features   Features      `json:"features"`
	Decision   Decision      `json:"decision"`
}

type Classifier struct {
	sampler *Sampler
	log     *logrus.Entry
}

// NewClassifier builds a classifier around sampler. A nil logger discards output.
func NewClassifier(sampler *Sampler, logger *logrus.Logger) *Classifier {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Classifier{
		sampler: sampler,
		log:     logger.WithField("component", "voice_classifier"),
	}
}

// Features completes in with sampled derived scores and clamps the result.
func (c *Classifier) Features(in Input) Features {
	f := Features{Pitch: in.Pitch, Volume: in.Volume, SpeechRate: in.SpeechRate}
	if in.PitchVariability != nil {
		f.PitchVariability = *in.PitchVariability
	} else {
		f.PitchVariability = c.sampler.PitchVariability()
	}
	if in.VolumeConsistency != nil {
		f.VolumeConsistency = *in.VolumeConsistency
	} else {
		f.VolumeConsistency = c.sampler.VolumeConsistency()
	}
	return f.Clamp()
}

func (c *Classifier) Analyze(in Input) Result {
	f := c.Features(in)
	d := Trace(f)
	res := Result{
		Label:      d.Label,
		Confidence: c.sampler.Confidence(),
		Features:   f,
		Decision:   d,
	}
	c.log.WithFields(logrus.Fields{
		"branch":     d.Branch,
		"rule":       d.Rule,
		"label":      d.Label,
		"confidence": res.Confidence,
	}).Debug("voice classified")
	return res
}
