package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/metrics/export/internaldefs"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no engine or source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type histogramInstruments struct {
	id      goOnboard.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
	bounds  []metric.ObserveOption
}

// OTelExporter observes engine metrics on every collection of the meter's reader.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration

	counters   []metric.Int64ObservableCounter
	histograms []histogramInstruments
	audit      []metric.Int64ObservableCounter
	gauges     []metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goOnboard.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments on meter that read from source.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		name := internaldefs.OTelName(def.Name)
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", name, err)
		}
		e.counters = append(e.counters, ins)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		name := internaldefs.OTelName(def.Name)
		buckets, err := meter.Int64ObservableGauge(name+".bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge %s: %w", name, err)
		}
		count, err := meter.Int64ObservableCounter(name+".count",
			metric.WithDescription(def.Help+" Sample count."),
			metric.WithUnit("{call}"))
		if err != nil {
			return nil, fmt.Errorf("create count %s: %w", name, err)
		}
		h := histogramInstruments{id: def.ID, buckets: buckets, count: count}
		for _, le := range internaldefs.HistogramBounds {
			h.bounds = append(h.bounds, metric.WithAttributes(attribute.String("le", le)))
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, buckets, count)
	}

	for _, def := range internaldefs.AuditDefs {
		name := internaldefs.OTelName(def.Name)
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", name, err)
		}
		e.audit = append(e.audit, ins)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.GaugeDefs {
		name := internaldefs.OTelName(def.Name)
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", name, err)
		}
		e.gauges = append(e.gauges, ins)
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for i, def := range internaldefs.CounterDefs {
		o.ObserveInt64(e.counters[i], int64(snapshot.Counters[def.ID]))
	}

	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, opt := range h.bounds {
			o.ObserveInt64(h.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	stats := e.source.AuditStats()
	for i, def := range internaldefs.AuditDefs {
		o.ObserveInt64(e.audit[i], int64(def.Value(stats)))
	}

	gauges := e.source.Gauges()
	for i, def := range internaldefs.GaugeDefs {
		o.ObserveInt64(e.gauges[i], int64(def.Value(gauges)))
	}
	return nil
}

// Close unregisters the callback. The meter provider stays with the caller.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

