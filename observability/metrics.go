// Package observability exposes Prometheus metrics for the FEM controller.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame outcomes recorded in fem_frames_total.
const (
	FrameDecoded   = "decoded"
	FrameMalformed = "malformed"
	FrameOverflow  = "overflow"
)

// FEMCollector bundles the controller's metrics. All methods are safe on a nil receiver so
// components can run without metrics.
type FEMCollector struct {
	gatherer prometheus.Gatherer

	Frames           *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	PeripheralErrors *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	IFGood           *prometheus.GaugeVec
	Attenuation      prometheus.Gauge
}

// NewFEMCollector registers the FEM metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewFEMCollector(reg prometheus.Registerer) (*FEMCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fem_frames_total",
		Help: "Frames received on the MnC link, labeled by outcome.",
	}, []string{"result"}), "fem_frames_total")
	if err != nil {
		return nil, err
	}
	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fem_commands_total",
		Help: "Commands dispatched, labeled by command.",
	}, []string{"command"}), "fem_commands_total")
	if err != nil {
		return nil, err
	}
	periph, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fem_peripheral_errors_total",
		Help: "Failed sensor or actuator transactions, labeled by source.",
	}, []string{"source"}), "fem_peripheral_errors_total")
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fem_dispatch_duration_seconds",
		Help:    "Time from a decoded command to its response being ready.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "fem_dispatch_duration_seconds")
	if err != nil {
		return nil, err
	}
	ifGood, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fem_if_good",
		Help: "1 when the IF power of a channel is at or above the power good threshold.",
	}, []string{"channel"}), "fem_if_good")
	if err != nil {
		return nil, err
	}
	atten, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fem_attenuation_db",
		Help: "Attenuation last committed to both step attenuators.",
	}), "fem_attenuation_db")
	if err != nil {
		return nil, err
	}

	return &FEMCollector{
		gatherer:         gatherer,
		Frames:           frames,
		Commands:         commands,
		PeripheralErrors: periph,
		DispatchDuration: duration,
		IFGood:           ifGood,
		Attenuation:      atten,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FEMCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Frame counts one received frame by outcome.
func (c *FEMCollector) Frame(result string) {
	if c == nil || c.Frames == nil {
		return
	}
	c.Frames.WithLabelValues(result).Inc()
}

// Command records a dispatched command and how long it took.
func (c *FEMCollector) Command(name string, took time.Duration) {
	if c == nil {
		return
	}
	if c.Commands != nil {
		c.Commands.WithLabelValues(name).Inc()
	}
	if c.DispatchDuration != nil {
		c.DispatchDuration.Observe(took.Seconds())
	}
}

// PeripheralError counts a failed transaction against source.
func (c *FEMCollector) PeripheralError(source string) {
	if c == nil || c.PeripheralErrors == nil {
		return
	}
	c.PeripheralErrors.WithLabelValues(source).Inc()
}

// SetIFGood records the power good indicator of channel (1 or 2).
func (c *FEMCollector) SetIFGood(channel int, good bool) {
	if c == nil || c.IFGood == nil {
		return
	}
	v := 0.0
	if good {
		v = 1
	}
	c.IFGood.WithLabelValues(fmt.Sprint(channel)).Set(v)
}

// SetAttenuation records the committed attenuation.
func (c *FEMCollector) SetAttenuation(db float32) {
	if c == nil || c.Attenuation == nil {
		return
	}
	c.Attenuation.Set(float64(db))
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return col, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return col, err
	}
	return col, nil
}
