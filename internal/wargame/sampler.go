package wargame

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/ashureev/wargame/internal/domain"
)

// Float64Source yields uniform values in [0, 1).
type Float64Source interface {
	Float64() float64
}

// SampleWeighted picks one candidate description with probability
// proportional to its weight. Candidates with a non-positive or non-finite
// weight are ignored. If rounding leaves the cumulative sum short of the
// drawn value, the last usable candidate is returned.
func SampleWeighted(rng Float64Source, candidates []domain.OutcomeCandidate) (string, error) {
	usable := make([]domain.OutcomeCandidate, 0, len(candidates))
	total := 0.0
	for _, c := range candidates {
		if c.Weight <= 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
			continue
		}
		usable = append(usable, c)
		total += c.Weight
	}
	if len(usable) == 0 || total <= 0 || math.IsInf(total, 0) {
		return "", ErrNoCandidates
	}

	r := rng.Float64()
	cumulative := 0.0
	for _, c := range usable {
		cumulative += c.Weight / total
		if cumulative >= r {
			return c.Description, nil
		}
	}
	return usable[len(usable)-1].Description, nil
}

// lockedRand is a Float64Source safe for concurrent forecasts.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	}
	return &lockedRand{rng: rand.New(src)}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}
