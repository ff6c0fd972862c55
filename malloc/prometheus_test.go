//go:build linux

package malloc

import "testing"

import "github.com/prometheus/client_golang/prometheus"
import "github.com/prometheus/client_golang/prometheus/testutil"
import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestCollector(t *testing.T) {
	h := newtestheap(t, nil)
	for i := 0; i < 10; i++ {
		h.Malloc(128)
	}

	c := NewCollector(h)
	assert.Equal(t, 9, testutil.CollectAndCount(c))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "gomesh_mallocs_total"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "gomesh_allocated_bytes" {
			assert.Equal(t, float64(1280), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}
