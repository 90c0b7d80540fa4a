package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goOnboard "github.com/MrEthical07/goOnboard"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goOnboard.MetricsSnapshot
	audit    goOnboard.AuditStats
	gauges   goOnboard.Gauges
}

func (f *fakeSource) MetricsSnapshot() goOnboard.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goOnboard.MetricsSnapshot{
		Counters:   make(map[goOnboard.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goOnboard.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditStats() goOnboard.AuditStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.audit
}

func (f *fakeSource) Gauges() goOnboard.Gauges {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.gauges
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown failed: %v", err)
		}
	})
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestExporterObservesEngineMetrics(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goOnboard.MetricsSnapshot{
			Counters: map[goOnboard.MetricID]uint64{
				goOnboard.MetricSignInSuccess: 3,
			},
			Histograms: map[goOnboard.MetricID][]uint64{
				goOnboard.MetricIdentityLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		audit:  goOnboard.AuditStats{Dropped: 1},
		gauges: goOnboard.Gauges{Resolving: 2, PendingNavigations: 1},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goonboard-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)

	sum, ok := got["goonboard.signin.success"].(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected signin counter: %#v", got["goonboard.signin.success"])
	}
	if dropped, ok := got["goonboard.audit.dropped"].(metricdata.Sum[int64]); !ok || dropped.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected audit dropped counter: %#v", got["goonboard.audit.dropped"])
	}
	if g, ok := got["goonboard.resolutions.in.flight"].(metricdata.Gauge[int64]); !ok || g.DataPoints[0].Value != 2 {
		t.Fatalf("unexpected resolutions gauge: %#v", got["goonboard.resolutions.in.flight"])
	}
	if g, ok := got["goonboard.navigations.pending"].(metricdata.Gauge[int64]); !ok || g.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected navigations gauge: %#v", got["goonboard.navigations.pending"])
	}

	buckets, ok := got["goonboard.identity.latency.bucket"].(metricdata.Gauge[int64])
	if !ok || len(buckets.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %#v", got["goonboard.identity.latency.bucket"])
	}
	byBound := map[string]int64{}
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		byBound[le.AsString()] = dp.Value
	}
	if byBound["0.005"] != 1 || byBound["0.1"] != 5 || byBound["+Inf"] != 8 {
		t.Fatalf("unexpected cumulative buckets: %v", byBound)
	}
	if count, ok := got["goonboard.identity.latency.count"].(metricdata.Sum[int64]); !ok || count.DataPoints[0].Value != 8 {
		t.Fatalf("unexpected latency count: %#v", got["goonboard.identity.latency.count"])
	}
}

func TestExporterCloseStopsObserving(t *testing.T) {
	reader, provider := newReader(t)

	exp, err := NewOTelExporterFromSource(provider.Meter("goonboard-test"), &fakeSource{})
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := collect(t, reader); len(got) != 0 {
		t.Fatalf("expected no observations after Close, got %d metrics", len(got))
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader(t)

	if _, err := NewOTelExporterFromSource(provider.Meter("goonboard-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewOTelExporter(provider.Meter("goonboard-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for a nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goOnboard.MetricsSnapshot{
			Counters: map[goOnboard.MetricID]uint64{
				goOnboard.MetricSignInSuccess: 1,
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goonboard-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goOnboard.MetricSignInSuccess] = uint64(v)
			src.gauges.Clients = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(i + 1)
	}
	wg.Wait()
}
