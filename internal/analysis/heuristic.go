package analysis

import (
	"math/rand/v2"
	"sync"

	"github.com/joescharf/focus/internal/models"
)

// DistractionProbability is the chance the heuristic reports a distraction.
const DistractionProbability = 0.2

var heuristicReasons = []string{
	"Social media detected",
	"Non-work website detected",
	"Gaming activity detected",
	"Entertainment content detected",
}

// Random is the randomness used by the heuristic and the message pools.
type Random interface {
	Float64() float64
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a goroutine-safe Random seeded with seed.
func NewRandom(seed uint64) Random {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Heuristic is the placeholder judgement used when the model is unusable.
func Heuristic(r Random) models.AnalysisResult {
	if r.Float64() < DistractionProbability {
		return models.AnalysisResult{
			IsDistracted: true,
			Reason:       heuristicReasons[r.IntN(len(heuristicReasons))],
			Confidence:   0.5,
			Source:       models.ResultSourceHeuristic,
		}
	}
	return models.AnalysisResult{
		Reason:     "Activity appears focused",
		Confidence: 0.5,
		Source:     models.ResultSourceHeuristic,
	}
}
