package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DispatchTotal.WithLabelValues("manual", "dispatched").Inc()
	m.DispatchTotal.WithLabelValues("manual", "dispatched").Inc()
	m.IndexedChunksTotal.Add(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DispatchTotal.WithLabelValues("manual", "dispatched")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.IndexedChunksTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "meetingbot_dispatch_total")
	assert.Contains(t, names, "meetingbot_index_chunks_total")
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
