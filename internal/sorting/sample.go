package sorting

import (
	"hash/fnv"
	"math/rand/v2"

	"github.com/abelbrown/consonant/internal/card"
)

// Seed derives the generator seed from a stable key such as a collection id.
func Seed(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}

// Sample draws a seeded reservoir sample: r.Sample cards out of the first
// r.Pool cards. The same key and input always give the same sample. The
// result has min(Sample, Pool, len(cards)) distinct cards.
func Sample(cards []card.Card, key string, r Reservoir) []card.Card {
	pool := len(cards)
	if r.Pool > 0 && r.Pool < pool {
		pool = r.Pool
	}
	k := pool
	if r.Sample > 0 && r.Sample < k {
		k = r.Sample
	}

	seed := Seed(key)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	reservoir := make([]card.Card, k)
	copy(reservoir, cards[:k])
	for i := k; i < pool; i++ {
		if j := rng.IntN(i + 1); j < k {
			reservoir[j] = cards[i]
		}
	}

	rng.Shuffle(len(reservoir), func(i, j int) {
		reservoir[i], reservoir[j] = reservoir[j], reservoir[i]
	})
	return reservoir
}
