package draw

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-secret-friend/internal/domain"
)

// IntN is the randomness a draw needs: a uniform int in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type IntN interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Assignment is one giver/receiver edge of a derangement.
type Assignment struct {
	Giver    string
	Receiver string
}

// Derange assigns every id a receiver so that the mapping is a permutation
// with no fixed points. It rejection-samples uniform shuffles up to
// maxAttempts times, then falls back to splitting a shuffled order into
// cycles of length two or more. The returned slice follows the order of ids.
func Derange(ids []string, rng IntN, maxAttempts int) ([]Assignment, error) {
	n := len(ids)
	if n < 2 {
		return nil, fmt.Errorf("%d participants: %w", n, domain.ErrInsufficientParticipants)
	}
	if rng == nil {
		rng = globalRand{}
	}
	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate participant %s: %w", id, domain.ErrBadRequest)
		}
		seen[id] = struct{}{}
	}

	perm := make([]int, n)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		identity(perm)
		shuffle(perm, rng)
		if fixedPointFree(perm) {
			return assignments(ids, perm)
		}
	}
	return assignments(ids, cycleFallback(n, rng))
}

func identity(p []int) {
	for i := range p {
		p[i] = i
	}
}

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle(p []int, rng IntN) {
	for i := len(p) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		p[i], p[j] = p[j], p[i]
	}
}

func fixedPointFree(p []int) bool {
	for i, v := range p {
		if i == v {
			return false
		}
	}
	return true
}

// cycleFallback shuffles the indices and cuts them at random boundaries into
// cycles of at least two members. Each member gives to the next one in its cycle.
func cycleFallback(n int, rng IntN) []int {
	order := make([]int, n)
	identity(order)
	shuffle(order, rng)

	perm := make([]int, n)
	for start := 0; start < n; {
		rem := n - start
		size := rem
		if rem >= 4 {
			// size in [2, rem-2] keeps at least two for the next cycle; rem-1 means "close here".
			if k := 2 + rng.IntN(rem-2); k <= rem-2 {
				size = k
			}
		}
		cycle := order[start : start+size]
		for i, giver := range cycle {
			perm[giver] = cycle[(i+1)%len(cycle)]
		}
		start += size
	}
	return perm
}

func assignments(ids []string, perm []int) ([]Assignment, error) {
	out := make([]Assignment, len(ids))
	received := make([]bool, len(ids))
	for giver, receiver := range perm {
		if giver == receiver || received[receiver] {
			return nil, fmt.Errorf("invalid derangement at %d", giver)
		}
		received[receiver] = true
		out[giver] = Assignment{Giver: ids[giver], Receiver: ids[receiver]}
	}
	return out, nil
}
