package malloc

import "math/rand"

// meshable return true if a and b can share physical pages, both
// from the same size class with no live slot in common.
func meshable(a, b *MiniHeap) bool {
	if a == b || a.sizeclass != b.sizeclass || a.maxcount != b.maxcount {
		return false
	} else if a.Islarge() || b.Islarge() {
		return false
	}
	return a.bitmap.IntersectionCardinality(b.bitmap) == 0
}

// shiftedsplitting pair up candidates with disjoint bitmaps. The
// candidates are shuffled and split in two halves, every MiniHeap on
// the left is probed against at most `probes` MiniHeaps on the
// right, starting from a random shift. A right MiniHeap is paired
// at most once. found is called for every meshable pair and returns
// whether the pair was accepted. Return the number of accepted
// pairs. Shuffles candidates in place.
func shiftedsplitting(
	rng *rand.Rand, candidates []*MiniHeap, probes int,
	found func(a, b *MiniHeap) bool) int {

	if len(candidates) < 2 {
		return 0
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	half := len(candidates) / 2
	left, right := candidates[:half], candidates[half:]

	limit := probes
	if limit > len(right) {
		limit = len(right)
	}
	used := make([]bool, len(right))
	shift, npairs := rng.Intn(len(right)), 0
	for i, l := range left {
		for j := 0; j < limit; j++ {
			k := (i + shift + j) % len(right)
			if used[k] || !meshable(l, right[k]) {
				continue
			}
			if found(l, right[k]) {
				used[k] = true
				npairs++
				break
			}
		}
	}
	return npairs
}

type meshpair struct {
	dst, src *MiniHeap
}

// orderpair merge into the MiniHeap that already carries more
// spans, ok is false if the merged MiniHeap would exceed maxmeshes.
func orderpair(a, b *MiniHeap, maxmeshes int64) (p meshpair, ok bool) {
	if a.Meshcount()+b.Meshcount() > maxmeshes {
		return p, false
	}
	if a.Meshcount() < b.Meshcount() {
		return meshpair{dst: b, src: a}, true
	}
	return meshpair{dst: a, src: b}, true
}
