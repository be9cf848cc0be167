package scramble

import (
	"encoding/json"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Pair is one key/value entry of a scrambled context view. Go maps carry
// no iteration order, so the randomized view is an ordered pair slice.
type Pair struct {
	Key   string
	Value any
}

// Scrambler produces randomly reordered views of a context mapping so that
// agents cannot exploit positional cues in the prompt.
type Scrambler struct {
	rng *rand.Rand
}

type Option func(*Scrambler)

// WithSeed makes the shuffle order deterministic, for tests.
func WithSeed(seed uint64) Option {
	return func(s *Scrambler) {
		s.rng = rand.New(rand.NewPCG(seed, 0))
	}
}

func New(opts ...Option) *Scrambler {
	s := &Scrambler{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scramble returns the mapping's entries with keys in uniformly random
// order. The input is not mutated.
func (s *Scrambler) Scramble(mapping map[string]any) []Pair {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	// Map iteration order is randomized per call by the runtime; sort first
	// so the permutation is a function of the seed alone.
	sort.Strings(keys)
	s.rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	pairs := make([]Pair, len(keys))
	for i, k := range keys {
		pairs[i] = Pair{Key: k, Value: mapping[k]}
	}
	return pairs
}

// Format serializes a scrambled view to a JSON-object-shaped block with
// the given pair order preserved. encoding/json alone cannot be used for
// the whole object because it sorts map keys.
func Format(pairs []Pair) (string, error) {
	var sb strings.Builder
	sb.WriteString("{")
	for i, p := range pairs {
		key, err := json.Marshal(p.Key)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal context key", goerr.V("key", p.Key))
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal context value", goerr.V("key", p.Key))
		}

		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n  ")
		sb.Write(key)
		sb.WriteString(": ")
		sb.Write(value)
	}
	if len(pairs) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String(), nil
}
