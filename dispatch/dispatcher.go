// Package dispatch runs the controller's command/response protocol: it decodes frames
// from the MnC link, applies each command and produces its response.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linht/fem-controller/atten"
	"github.com/linht/fem-controller/device"
	"github.com/linht/fem-controller/monitor"
	"github.com/linht/fem-controller/observability"
	"github.com/linht/fem-controller/transport"
)

// State is the protocol state of the dispatcher.
type State int32

const (
	AwaitingFrame State = iota
	FrameReceived
	Dispatching
	ResponseSent
)

func (s State) String() string {
	switch s {
	case AwaitingFrame:
		return "AwaitingFrame"
	case FrameReceived:
		return "FrameReceived"
	case Dispatching:
		return "Dispatching"
	case ResponseSent:
		return "ResponseSent"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Switch is a two-state output such as an LNA regulator enable. go-gpiocdev's *Line
// satisfies it.
type Switch interface {
	SetValue(value int) error
}

// Attenuator sets both attenuator channels at once.
type Attenuator interface {
	SetAttenuation(db float32) error
}

// Tone is a calibration tone output that can only be switched on or off.
type Tone interface {
	Enable(on bool) error
}

// Actuators are the outputs owned exclusively by the dispatcher. Nil entries are skipped.
type Actuators struct {
	LNA1  Switch
	LNA2  Switch
	Atten Attenuator
	Cal1  Tone
	Cal2  Tone
}

// Replier transmits a response.
type Replier func(resp transport.Response) error

// Dispatcher applies commands one at a time.
type Dispatcher struct {
	mu  sync.Mutex
	arb *device.Arbiter
	agg *monitor.Aggregator
	act Actuators

	state    atomic.Int32
	observer func(State)
	log      *slog.Logger
	metrics  *observability.FEMCollector
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records frames and commands.
func WithMetrics(m *observability.FEMCollector) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithObserver calls fn on every protocol state transition. fn runs with the dispatch
// lock held and must not call back into the dispatcher.
func WithObserver(fn func(State)) Option {
	return func(d *Dispatcher) { d.observer = fn }
}

// New returns a dispatcher that reads state through arb, refreshes snapshots with agg and
// drives act.
func New(arb *device.Arbiter, agg *monitor.Aggregator, act Actuators, opts ...Option) *Dispatcher {
	d := &Dispatcher{arb: arb, agg: agg, act: act, log: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State reports the current protocol state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
	if d.observer != nil {
		d.observer(s)
	}
}

// HandleFrame processes one message delivered by the link deframer. frameErr is the
// deframer's verdict on the frame. Malformed input gets no reply. The error returned is
// the reply's transmit error, if any.
func (d *Dispatcher) HandleFrame(msg []byte, frameErr error, reply Replier) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setState(FrameReceived)
	if frameErr != nil {
		d.drop(frameErr)
		return nil
	}
	cmd, err := transport.DecodeCommand(msg)
	if err != nil {
		d.drop(fmt.Errorf("decode % X: %w", msg, err))
		return nil
	}
	d.metrics.Frame(observability.FrameDecoded)
	return d.run(cmd, reply)
}

// Do applies cmd and returns its response. It shares the lock with HandleFrame, so
// commands from every surface are serialized.
func (d *Dispatcher) Do(cmd transport.Command) transport.Response {
	d.mu.Lock()
	defer d.mu.Unlock()

	var resp transport.Response
	_ = d.run(cmd, func(r transport.Response) error {
		resp = r
		return nil
	})
	return resp
}

func (d *Dispatcher) drop(err error) {
	result := observability.FrameMalformed
	if errors.Is(err, transport.ErrOverflow) {
		result = observability.FrameOverflow
	}
	d.metrics.Frame(result)
	d.log.Warn("Dropping frame", "error", err)
	d.setState(AwaitingFrame)
}

func (d *Dispatcher) run(cmd transport.Command, reply Replier) error {
	d.setState(Dispatching)
	start := time.Now()
	name := transport.CommandName(cmd)
	d.log.Debug("Dispatching command", "command", name)

	resp := d.dispatch(cmd)
	d.metrics.Command(name, time.Since(start))

	err := reply(resp)
	if err != nil {
		d.log.Error("Failed to send response", "command", name, "error", err)
	}
	d.setState(ResponseSent)
	d.setState(AwaitingFrame)
	return err
}

func (d *Dispatcher) dispatch(cmd transport.Command) transport.Response {
	switch c := cmd.(type) {
	case transport.MonitorRequest:
		return transport.MonitorReport{Payload: d.agg.Refresh()}
	case transport.Control:
		d.apply(c.Action)
	default:
		d.log.Warn("Unhandled command", "type", fmt.Sprintf("%T", cmd))
	}
	return transport.Ack{}
}

// apply performs an action's side effect. Hardware failures are logged and counted; the
// command is acknowledged regardless.
func (d *Dispatcher) apply(a transport.Action) {
	switch act := a.(type) {
	case transport.SetIfLevel:
		d.arb.Foreground(func(r *device.Resources) {
			r.State.IfGoodThreshold = act.Threshold
		})
	case transport.Lna1Power:
		d.setSwitch("lna1", d.act.LNA1, act.Enabled)
	case transport.Lna2Power:
		d.setSwitch("lna2", d.act.LNA2, act.Enabled)
	case transport.SetAtten:
		if d.act.Atten == nil {
			return
		}
		if err := d.act.Atten.SetAttenuation(act.Level); err != nil {
			d.log.Error("Failed to set attenuation", "level", act.Level, "error", err)
			d.metrics.PeripheralError("attenuator")
			return
		}
		d.metrics.SetAttenuation(atten.Quantize(act.Level))
	case transport.SetCal1:
		d.setTone("cal1", d.act.Cal1, act.Enabled)
	case transport.SetCal2:
		d.setTone("cal2", d.act.Cal2, act.Enabled)
	default:
		d.log.Warn("Unhandled action", "type", fmt.Sprintf("%T", a))
	}
}

func (d *Dispatcher) setSwitch(name string, s Switch, on bool) {
	if s == nil {
		return
	}
	value := 0
	if on {
		value = 1
	}
	if err := s.SetValue(value); err != nil {
		d.log.Error("Failed to drive LNA enable", "lna", name, "enabled", on, "error", err)
		d.metrics.PeripheralError("gpio")
	}
}

func (d *Dispatcher) setTone(name string, t Tone, on bool) {
	if t == nil {
		return
	}
	if err := t.Enable(on); err != nil {
		d.log.Error("Failed to switch calibration tone", "tone", name, "enabled", on, "error", err)
		d.metrics.PeripheralError("pwm")
	}
}

// Boot puts the outputs into their power-on configuration: both LNAs on, 0 dB of
// attenuation and both calibration tones off. An attenuator failure is returned since the
// board cannot be trusted with an unknown attenuation; the other failures are only logged.
func (d *Dispatcher) Boot() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setSwitch("lna1", d.act.LNA1, true)
	d.setSwitch("lna2", d.act.LNA2, true)
	d.setTone("cal1", d.act.Cal1, false)
	d.setTone("cal2", d.act.Cal2, false)
	if d.act.Atten != nil {
		if err := d.act.Atten.SetAttenuation(0); err != nil {
			return fmt.Errorf("set initial attenuation: %w", err)
		}
		d.metrics.SetAttenuation(0)
	}
	d.setState(AwaitingFrame)
	return nil
}
