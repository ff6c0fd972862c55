package malloc

import "math/rand"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func randminiheaps(rng *rand.Rand, n int, maxcount int64, density float64) []*MiniHeap {
	mhs := make([]*MiniHeap, 0, n)
	for i := 0; i < n; i++ {
		mh := newminiheap(span{offset: int64(i), npages: 1}, 0, 64, maxcount)
		mh.id = uint32(i + 1)
		for slot := int64(0); slot < maxcount; slot++ {
			if rng.Float64() < density {
				mh.bitmap.Set(uint(slot))
				mh.inuse++
			}
		}
		mhs = append(mhs, mh)
	}
	return mhs
}

func TestShiftedSplittingDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		density := 0.05 + rng.Float64()*0.4
		mhs := randminiheaps(rng, 200, 64, density)

		seen := make(map[*MiniHeap]bool)
		npairs := shiftedsplitting(rng, mhs, 64, func(a, b *MiniHeap) bool {
			require.Zero(t, a.bitmap.IntersectionCardinality(b.bitmap))
			require.False(t, seen[a], "%v paired twice", a)
			require.False(t, seen[b], "%v paired twice", b)
			seen[a], seen[b] = true, true
			return true
		})
		assert.Equal(t, len(seen), 2*npairs)
	}
}

func TestShiftedSplittingDeterministic(t *testing.T) {
	run := func(seed int64) [][2]uint32 {
		mhs := randminiheaps(rand.New(rand.NewSource(7)), 100, 32, 0.2)
		pairs := make([][2]uint32, 0)
		shiftedsplitting(rand.New(rand.NewSource(seed)), mhs, 16, func(a, b *MiniHeap) bool {
			pairs = append(pairs, [2]uint32{a.id, b.id})
			return true
		})
		return pairs
	}
	first := run(1)
	require.NotEmpty(t, first)
	assert.Equal(t, first, run(1))
}

func TestShiftedSplittingReject(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	mhs := randminiheaps(rng, 64, 64, 0.1)
	calls := 0
	n := shiftedsplitting(rng, mhs, 4, func(a, b *MiniHeap) bool {
		calls++
		return false
	})
	assert.Zero(t, n)
	assert.LessOrEqual(t, calls, 32*4)

	// fewer than two candidates
	assert.Zero(t, shiftedsplitting(rng, mhs[:1], 4, nil))
	assert.Zero(t, shiftedsplitting(rng, nil, 4, nil))
}

func TestMeshable(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	mhs := randminiheaps(rng, 2, 64, 0)
	a, b := mhs[0], mhs[1]
	a.bitmap.Set(1)
	b.bitmap.Set(2)
	assert.True(t, meshable(a, b))
	assert.False(t, meshable(a, a))

	b.bitmap.Set(1)
	assert.False(t, meshable(a, b))

	c := newminiheap(span{offset: 9, npages: 1}, 1, 64, 64)
	assert.False(t, meshable(a, c))

	l1 := newminiheap(span{offset: 10, npages: 2}, -1, 2*PageSize, 1)
	l2 := newminiheap(span{offset: 12, npages: 2}, -1, 2*PageSize, 1)
	assert.False(t, meshable(l1, l2))
}

func TestOrderpair(t *testing.T) {
	a := newminiheap(span{offset: 0, npages: 1}, 0, 64, 64)
	b := newminiheap(span{offset: 1, npages: 1}, 0, 64, 64)
	b.spans = append(b.spans, span{offset: 2, npages: 1})

	p, ok := orderpair(a, b, 8)
	require.True(t, ok)
	assert.Equal(t, b, p.dst)
	assert.Equal(t, a, p.src)

	_, ok = orderpair(a, b, 2)
	assert.False(t, ok)
}
