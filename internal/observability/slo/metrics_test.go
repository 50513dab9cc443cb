package slo

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sloCollectors() map[string]prometheus.Collector {
	return map[string]prometheus.Collector{
		"availability":     SLOAvailability,
		"latency_p95":      SLOLatencyP95,
		"latency_p99":      SLOLatencyP99,
		"error_rate":       SLOErrorRate,
		"delivery_success": SLODeliverySuccess,
	}
}

func TestSLOTargets(t *testing.T) {
	assert.Equal(t, 99.9, AvailabilitySLO)
	assert.Equal(t, 0.200, LatencyP95SLO)
	assert.Equal(t, 0.500, LatencyP99SLO)
	assert.Equal(t, 0.001, ErrorRateSLO)
	assert.Equal(t, 0.995, DeliverySuccessSLO)

	// Sanity relations between the targets
	assert.Greater(t, LatencyP99SLO, LatencyP95SLO)
	assert.Less(t, ErrorRateSLO, 0.01)
	assert.Less(t, DeliverySuccessSLO, 1.0)
	assert.GreaterOrEqual(t, DeliverySuccessSLO, 0.9)
}

func TestUpdateSetsGauges(t *testing.T) {
	tests := []struct {
		name   string
		update func(float64)
		gauge  prometheus.Gauge
		value  float64
	}{
		{"availability", UpdateAvailability, SLOAvailability, 0.9995},
		{"latency p95", UpdateLatencyP95, SLOLatencyP95, 0.150},
		{"latency p99", UpdateLatencyP99, SLOLatencyP99, 0.450},
		{"error rate", UpdateErrorRate, SLOErrorRate, 0.0005},
		{"delivery success", UpdateDeliverySuccess, SLODeliverySuccess, 0.9973},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.gauge.Set(0)
			tt.update(tt.value)
			assert.Equal(t, tt.value, testutil.ToFloat64(tt.gauge))
		})
	}
}

func TestGaugesAreCollectable(t *testing.T) {
	UpdateAvailability(0.999)
	UpdateLatencyP95(0.180)
	UpdateLatencyP99(0.420)
	UpdateErrorRate(0.0008)
	UpdateDeliverySuccess(0.996)

	for name, collector := range sloCollectors() {
		t.Run(name, func(t *testing.T) {
			descs := make(chan *prometheus.Desc, 1)
			collector.Describe(descs)
			select {
			case d := <-descs:
				require.NotNil(t, d)
			default:
				t.Fatal("no descriptor received")
			}

			assert.Equal(t, 1, testutil.CollectAndCount(collector))
		})
	}
}
