package collector

import (
	"math"
	"math/rand"
	"sync"

	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/normalize"
)

const (
	minPenalty = 1
	maxPenalty = 3
)

// Degrader manufactures negative examples from positives. Penalties come
// from a seeded source so runs are reproducible.
type Degrader struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDegrader(seed int64) *Degrader {
	return &Degrader{rng: rand.New(rand.NewSource(seed))}
}

func (d *Degrader) penalty() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return float64(minPenalty + d.rng.Intn(maxPenalty-minPenalty+1))
}

// Degrade returns a negative copy of positive: every experience candidate
// loses a penalty in [1,3] floored at 0, and the highest education level is
// dropped.
func (d *Degrader) Degrade(positive models.CanonicalRecord) models.CanonicalRecord {
	neg := positive.Clone()
	for _, c := range neg.ExperienceCandidates {
		for i := range c {
			c[i] = math.Max(0, c[i]-d.penalty())
		}
	}
	if neg.ExperienceCandidates != nil {
		neg.ExperienceRequired = normalize.MeanExperience(neg.ExperienceCandidates)
	}
	neg.Education = neg.Education.Downgrade()
	neg.Employable = false
	return neg
}
