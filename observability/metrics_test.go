package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMarketplaceMetricsExportThroughMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m := newMarketplaceMetrics(provider)
	m.ObserveTransaction("Purchase", nil, 2*time.Millisecond)
	m.ObserveTransaction("Purchase", errors.New("price mismatch"), time.Millisecond)
	m.RecordListed()
	m.RecordSettlement(1_000, 50, 10)

	data := collect(t, reader)
	txs, ok := data["marketchain.state.transactions"].(metricdata.Sum[int64])
	require.True(t, ok)
	var applied, rejected int64
	for _, dp := range txs.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		switch outcome.AsString() {
		case "applied":
			applied += dp.Value
		case "rejected":
			rejected += dp.Value
		}
	}
	require.Equal(t, int64(1), applied)
	require.Equal(t, int64(1), rejected)

	settlements, ok := data["marketchain.market.settlements"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, settlements.DataPoints, 1)
	require.Equal(t, int64(1), settlements.DataPoints[0].Value)

	volume, ok := data["marketchain.market.settled_volume"].(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, volume.DataPoints, 1)
	require.Equal(t, float64(1_000), volume.DataPoints[0].Value)

	_, ok = data["marketchain.state.transaction_duration_ms"].(metricdata.Histogram[float64])
	require.True(t, ok)
}

func TestMarketplaceMetricsPrometheusCounters(t *testing.T) {
	m := newMarketplaceMetrics(nil)
	m.RecordListed()
	m.RecordListed()
	m.RecordSettlement(700, 35, 7)
	m.RecordCancelled()

	var sample dto.Metric
	require.NoError(t, m.fees.Write(&sample))
	require.Equal(t, float64(35), sample.GetCounter().GetValue())

	sample.Reset()
	require.NoError(t, m.listings.Write(&sample))
	require.Zero(t, sample.GetGauge().GetValue())

	sample.Reset()
	require.NoError(t, m.transactions.WithLabelValues("List", "applied").Write(&sample))
	require.Zero(t, sample.GetCounter().GetValue())
}
