package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleOverruns_Increments(t *testing.T) {
	m := New("")
	m.CycleOverruns.WithLabelValues("vision").Inc()
	m.CycleOverruns.WithLabelValues("vision").Inc()

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "cyclerd_cycle_overrun_total" {
			found = f
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Metric, 1)
	assert.Equal(t, float64(2), found.Metric[0].GetCounter().GetValue())
}

func TestNew_DefaultNamespace(t *testing.T) {
	m := New("")
	m.Subscriptions.WithLabelValues("outputs").Set(3)

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
