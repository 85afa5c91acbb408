// Package monitor builds MonitorPayload snapshots from the board's sensors.
package monitor

import (
	"log/slog"

	"github.com/linht/fem-controller/convert"
	"github.com/linht/fem-controller/device"
	"github.com/linht/fem-controller/observability"
	"github.com/linht/fem-controller/transport"
)

// Power monitor channels wired to each rail.
const (
	LNA1Rail   = 1
	LNA2Rail   = 2
	AnalogRail = 3
)

// PowerMonitor reports the bus and shunt voltage of a channel, in volts.
type PowerMonitor interface {
	BusVoltage(ch int) (float32, error)
	ShuntVoltage(ch int) (float32, error)
}

// TempSensor reports a temperature in °C.
type TempSensor interface {
	TempC() (float32, error)
}

// Aggregator refreshes the monitor snapshot held in device state.
type Aggregator struct {
	arb     *device.Arbiter
	power   PowerMonitor
	surface TempSensor
	log     *slog.Logger
	metrics *observability.FEMCollector
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSurfaceSensor adds the external board temperature sensor. Without it surface_temp
// stays at its boot value.
func WithSurfaceSensor(s TempSensor) Option {
	return func(a *Aggregator) { a.surface = s }
}

// WithLogger sets the logger used for sub-read failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithMetrics counts sub-read failures.
func WithMetrics(m *observability.FEMCollector) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New returns an aggregator reading the ADC through arb and the rails through power.
func New(arb *device.Arbiter, power PowerMonitor, opts ...Option) *Aggregator {
	a := &Aggregator{arb: arb, power: power, log: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Refresh reads every sensor once and stores the result as the new snapshot.
//
// A failed read is logged and leaves that field at its previous value; the remaining
// reads still run. The snapshot in device state is replaced in one step, so readers never
// observe a half-built payload.
func (a *Aggregator) Refresh() transport.MonitorPayload {
	var p transport.MonitorPayload
	a.arb.Foreground(func(r *device.Resources) { p = r.State.LastMonitor })

	// ADC reads share the converter with the status loop
	a.arb.Foreground(func(r *device.Resources) {
		if v, err := r.IFPower(device.IF1); err != nil {
			a.fail("if1_power", "adc", err)
		} else {
			p.IF1Power = v
		}
	})
	a.arb.Foreground(func(r *device.Resources) {
		if v, err := r.IFPower(device.IF2); err != nil {
			a.fail("if2_power", "adc", err)
		} else {
			p.IF2Power = v
		}
	})
	a.arb.Foreground(func(r *device.Resources) {
		if v, err := r.DieTempC(); err != nil {
			a.fail("ic_temp", "adc", err)
		} else {
			p.ICTemp = v
		}
	})

	if a.surface != nil {
		if v, err := a.surface.TempC(); err != nil {
			a.fail("surface_temp", "tmp100", err)
		} else {
			p.SurfaceTemp = v
		}
	}

	a.readRail("lna1_power", LNA1Rail, convert.LNASenseOhms, &p.LNA1Power)
	a.readRail("lna2_power", LNA2Rail, convert.LNASenseOhms, &p.LNA2Power)
	a.readRail("analog_power", AnalogRail, convert.AnalogSenseOhms, &p.AnalogPower)

	a.arb.Foreground(func(r *device.Resources) { r.State.LastMonitor = p })
	return p
}

func (a *Aggregator) readRail(field string, ch int, senseOhms float32, dst *transport.Power) {
	if a.power == nil {
		return
	}
	if v, err := a.power.BusVoltage(ch); err != nil {
		a.fail(field+".voltage", "ina3221", err)
	} else {
		dst.Voltage = v
	}
	if v, err := a.power.ShuntVoltage(ch); err != nil {
		a.fail(field+".current", "ina3221", err)
	} else {
		dst.Current = convert.ShuntCurrent(v, senseOhms)
	}
}

func (a *Aggregator) fail(field, source string, err error) {
	a.log.Error("Monitor read failed", "field", field, "source", source, "error", err)
	a.metrics.PeripheralError(source)
}
