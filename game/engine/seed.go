package engine

import (
	"math/rand"
	"sync"
)

// SeedSource hands out combat seeds.
type SeedSource interface {
	Seed() int64
}

// SeedFunc adapts a function to SeedSource.
type SeedFunc func() int64

func (f SeedFunc) Seed() int64 { return f() }

// FixedSeeds replays the given seeds in order, then repeats the last one.
func FixedSeeds(seeds ...int64) SeedSource {
	var mu sync.Mutex
	i := 0
	return SeedFunc(func() int64 {
		mu.Lock()
		defer mu.Unlock()
		if len(seeds) == 0 {
			return 0
		}
		s := seeds[min(i, len(seeds)-1)]
		i++
		return s
	})
}

// randSeeds draws seeds from its own source; rand.Rand is not safe for
// concurrent use.
type randSeeds struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandSeeds returns a SeedSource backed by rand.NewSource(origin).
func NewRandSeeds(origin int64) SeedSource {
	return &randSeeds{rng: rand.New(rand.NewSource(origin))}
}

func (r *randSeeds) Seed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int63()
}
