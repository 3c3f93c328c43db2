package voice

import (
	"math/rand/v2"
	"sync"
)

// Sampler draws the synthetic derived features and the confidence band used
// until a real feature pipeline supplies them. Safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand

	confMin    float64
	confSpread float64
}

// NewSampler seeds a PCG source. The same seed yields the same draws.
func NewSampler(seed uint64) *Sampler {
	return NewSamplerFrom(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func NewSamplerFrom(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src), confMin: 0.7, confSpread: 0.2}
}

// WithConfidenceBand overrides the default [0.7, 0.9) confidence band.
func (s *Sampler) WithConfidenceBand(lo, spread float64) *Sampler {
	s.mu.Lock()
	s.confMin, s.confSpread = lo, spread
	s.mu.Unlock()
	return s
}

func (s *Sampler) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// PitchVariability is drawn from [0.2, 0.4).
func (s *Sampler) PitchVariability() float64 { return 0.2 + s.float()*0.2 }

// VolumeConsistency is drawn from [0.3, 0.7).
func (s *Sampler) VolumeConsistency() float64 { return 0.3 + s.float()*0.4 }

func (s *Sampler) Confidence() float64 {
	s.mu.Lock()
	lo, spread := s.confMin, s.confSpread
	s.mu.Unlock()
	return unit(lo + s.float()*spread)
}
