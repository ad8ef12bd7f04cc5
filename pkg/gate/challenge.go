package gate

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/tendant/group-gatekeeper/pkg/domain"
)

const challengeOptionCount = 4

// ChallengeSpec is one entry in the fixed challenge pool: a bilingual
// prompt and its correct option.
type ChallengeSpec struct {
	PromptEN string
	PromptRU string
	Answer   string
}

// ChallengeGenerator produces captcha instances from a fixed pool of
// prompts and decoy options. It is a pure function of its random source;
// the only state that outlives a call is what the caller stores in the
// verification record.
type ChallengeGenerator struct {
	specs  []ChallengeSpec
	decoys []string

	// rand.Rand is not safe for concurrent use; events for distinct users
	// run in parallel.
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewChallengeGenerator creates a generator over the given pools. Every
// answer needs enough decoys distinct from it to fill the option set.
func NewChallengeGenerator(specs []ChallengeSpec, decoys []string, rnd *rand.Rand) (*ChallengeGenerator, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("challenge pool is empty")
	}
	for _, spec := range specs {
		distinct := 0
		for _, d := range decoys {
			if d != spec.Answer {
				distinct++
			}
		}
		if distinct < challengeOptionCount-1 {
			return nil, fmt.Errorf("need at least %d decoy options distinct from %q, have %d",
				challengeOptionCount-1, spec.Answer, distinct)
		}
	}
	return &ChallengeGenerator{specs: specs, decoys: decoys, rnd: rnd}, nil
}

// Generate returns a fresh challenge: one prompt from the pool plus three
// decoys, shuffled so the correct option's position is uniform across
// reissues.
func (g *ChallengeGenerator) Generate() domain.Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	spec := g.specs[g.rnd.IntN(len(g.specs))]

	// Sample three distinct decoys, skipping any that collide with the
	// correct option.
	pool := make([]string, 0, len(g.decoys))
	for _, d := range g.decoys {
		if d != spec.Answer {
			pool = append(pool, d)
		}
	}
	g.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	options := make([]string, 0, challengeOptionCount)
	options = append(options, spec.Answer)
	options = append(options, pool[:challengeOptionCount-1]...)
	g.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return domain.Challenge{
		PromptEN: spec.PromptEN,
		PromptRU: spec.PromptRU,
		Answer:   spec.Answer,
		Options:  options,
	}
}
