package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads. *sessionguard.Engine satisfies it.
type Source interface {
	MetricsSnapshot() sessionguard.MetricsSnapshot
	AuditDropped() uint64
}

type counterBinding struct {
	id         sessionguard.MetricID
	instrument metric.Int64ObservableCounter
}

// histogramBinding publishes cumulative buckets on one instrument, one
// series per "le" bound, plus a total count.
type histogramBinding struct {
	id      sessionguard.MetricID
	buckets metric.Int64ObservableCounter
	count   metric.Int64ObservableCounter
}

// Exporter publishes engine counters through an OpenTelemetry meter. It
// reads one snapshot per collection.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []counterBinding
	histograms   []histogramBinding
	auditDropped metric.Int64ObservableCounter
}

var boundSets = func() []metric.ObserveOption {
	out := make([]metric.ObserveOption, len(internaldefs.BucketLabels))
	for i, le := range internaldefs.BucketLabels {
		out[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	return out
}()

// New registers instruments on meter and a callback reading source.
func New(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Defs {
		if def.Kind == internaldefs.Histogram {
			h, err := newHistogramBinding(meter, def)
			if err != nil {
				return nil, err
			}
			e.histograms = append(e.histograms, h)
			observables = append(observables, h.buckets, h.count)
			continue
		}
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func newHistogramBinding(meter metric.Meter, def internaldefs.Def) (histogramBinding, error) {
	buckets, err := meter.Int64ObservableCounter(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative bucket counts by upper bound."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return histogramBinding{}, fmt.Errorf("create histogram buckets %s: %w", def.Name, err)
	}
	count, err := meter.Int64ObservableCounter(def.Name+"_count",
		metric.WithDescription(def.Help+" Total samples."),
	)
	if err != nil {
		return histogramBinding{}, fmt.Errorf("create histogram count %s: %w", def.Name, err)
	}
	return histogramBinding{id: def.ID, buckets: buckets, count: count}, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.Cumulative(snapshot.Histograms[h.id])
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), boundSets[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay registered on the
// meter but report nothing further.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
