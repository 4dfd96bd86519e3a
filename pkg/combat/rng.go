package combat

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Roller draws uniformly distributed integers in [min, max].
type Roller interface {
	Between(min, max int) int
}

// RNG wraps math/rand.Rand with a recorded seed and draw count. One RNG
// belongs to one resolution; it is not safe for concurrent use.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// Between returns a random integer in [min, max].
func (r *RNG) Between(min, max int) int {
	r.pos++
	if max <= min {
		return min
	}
	return min + r.src.Intn(max-min+1)
}

// Roll returns a random integer in [1, sides].
func (r *RNG) Roll(sides int) int {
	return r.Between(1, sides)
}

func (r *RNG) Seed() int64 { return r.seed }

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 { return r.pos }

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
