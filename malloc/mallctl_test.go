//go:build linux

package malloc

import "encoding/binary"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func u64(b []byte) uint64 {
	return binary.NativeEndian.Uint64(b)
}

func TestMallctlBuffers(t *testing.T) {
	h := newtestheap(t, nil)
	assert.ErrorIs(t, h.Mallctl("stats.active", nil, nil), ErrorMallctlBuffer)
	assert.ErrorIs(t, h.Mallctl("stats.active", make([]byte, 4), nil), ErrorMallctlBuffer)
	assert.ErrorIs(t, h.Mallctl("unknown", nil, nil), ErrorMallctlBuffer)

	oldp := make([]byte, 8)
	assert.ErrorIs(t, h.Mallctl("mesh.check_period", oldp, nil), ErrorMallctlBuffer)
	assert.ErrorIs(t, h.Mallctl("mesh.check_period", oldp, make([]byte, 2)), ErrorMallctlBuffer)

	assert.NoError(t, h.Mallctl("unknown", oldp, nil))
	assert.NoError(t, h.Mallctl("arena", oldp, nil))
}

func TestMallctlCheckPeriod(t *testing.T) {
	h := newtestheap(t, nil)
	oldp, newp := make([]byte, 8), make([]byte, 8)

	binary.NativeEndian.PutUint64(newp, 50)
	require.NoError(t, h.Mallctl("mesh.check_period", oldp, newp))
	assert.Equal(t, uint64(0), u64(oldp))

	// short newp still reports the current period.
	oldp = make([]byte, 8)
	err := h.Mallctl("mesh.check_period", oldp, make([]byte, 4))
	assert.ErrorIs(t, err, ErrorMallctlBuffer)
	assert.Equal(t, uint64(50), u64(oldp))
	assert.Equal(t, int64(50), h.Stats()["mesh.period"])

	binary.NativeEndian.PutUint64(newp, 0)
	require.NoError(t, h.Mallctl("mesh.check_period", oldp, newp))
	assert.Equal(t, uint64(50), u64(oldp))
	assert.Equal(t, int64(0), h.Stats()["mesh.period"])
}

func TestMallctlStats(t *testing.T) {
	h := newtestheap(t, nil)
	oldp := make([]byte, 8)

	for i := 0; i < 10; i++ {
		h.Malloc(256)
	}
	h.Malloc(64)

	require.NoError(t, h.Mallctl("stats.allocated", oldp, nil))
	assert.Equal(t, uint64(10*256+64), u64(oldp))

	// one span of 16 slots of 256, one span of 64 slots of 64.
	require.NoError(t, h.Mallctl("stats.active", oldp, nil))
	assert.Equal(t, uint64(16*256+64*64), u64(oldp))

	require.NoError(t, h.Mallctl("stats.resident", oldp, nil))
	assert.Greater(t, u64(oldp), uint64(0))
}

func TestMallctlCompact(t *testing.T) {
	h := newtestheap(t, nil)
	groups := fillspans(t, h, 256, 2)
	for g, ptrs := range groups {
		for i, ptr := range ptrs {
			if i%2 != g {
				h.Free(ptr)
			}
		}
	}
	oldp := make([]byte, 8)
	require.NoError(t, h.Mallctl("mesh.compact", oldp, nil))
	assert.Equal(t, uint64(1), u64(oldp))
	require.NoError(t, h.Mallctl("mesh.compact", oldp, nil))
	assert.Equal(t, uint64(0), u64(oldp))
	require.NoError(t, h.Mallctl("mesh.scavenge", oldp, nil))
}
