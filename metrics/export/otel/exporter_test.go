package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/sessionguard"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessionguard.MetricsSnapshot{
		Counters:   make(map[sessionguard.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[sessionguard.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func findSum(rm metricdata.ResourceMetrics, name string) (metricdata.Sum[int64], bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			return sum, ok
		}
	}
	return metricdata.Sum[int64]{}, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess: 3,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(provider.Meter("sessionguard-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	login, ok := findSum(rm, "sessionguard_login_success_total")
	if !ok || len(login.DataPoints) != 1 || login.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected login counter %+v", login)
	}

	buckets, ok := findSum(rm, "sessionguard_login_latency_seconds_bucket")
	if !ok || len(buckets.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket series, got %+v", buckets)
	}
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		if le.AsString() == "+Inf" && dp.Value != 8 {
			t.Fatalf("+Inf bucket must be cumulative, got %d", dp.Value)
		}
	}

	dropped, ok := findSum(rm, "sessionguard_audit_dropped_total")
	if !ok || dropped.DataPoints[0].Value != 1 {
		t.Fatal("expected audit dropped counter")
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader(t)

	if _, err := New(provider.Meter("sessionguard-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess: 1,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := New(provider.Meter("sessionguard-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[sessionguard.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
