// Package device holds the controller's shared mutable state and the arbiter that
// serializes access to it between the command path and the background status loop.
package device

import (
	"fmt"

	"github.com/linht/fem-controller/convert"
	"github.com/linht/fem-controller/transport"
)

// DefaultIfGoodThreshold is the IF power, in dBm, at or above which a channel is "good".
const DefaultIfGoodThreshold float32 = -10.0

// State is the single shared-mutable record of the controller. It is reset to defaults at
// every boot and never persisted.
type State struct {
	IfGoodThreshold float32
	LastMonitor     transport.MonitorPayload
}

// DefaultState returns the boot-time state.
func DefaultState() State {
	return State{IfGoodThreshold: DefaultIfGoodThreshold}
}

// Channel selects an input of the on-board ADC.
type Channel int

const (
	IF1 Channel = iota
	IF2
	DieTemp
)

func (c Channel) String() string {
	switch c {
	case IF1:
		return "if1"
	case IF2:
		return "if2"
	case DieTemp:
		return "die_temp"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ADC performs one conversion on a channel and returns the raw 12-bit count.
type ADC interface {
	Read(ch Channel) (uint16, error)
}

// Resources is what the arbiter hands to a caller holding the lock: the state and the
// ADC shared by both execution contexts.
type Resources struct {
	State *State
	ADC   ADC
}

// IFPower reads one IF detector and converts it to dBm.
func (r *Resources) IFPower(ch Channel) (float32, error) {
	counts, err := r.ADC.Read(ch)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", ch, err)
	}
	return convert.DetectorDBm(convert.Volts(counts)), nil
}

// DieTempC reads the internal temperature sensor.
func (r *Resources) DieTempC() (float32, error) {
	counts, err := r.ADC.Read(DieTemp)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", DieTemp, err)
	}
	return convert.DieTempC(convert.Volts(counts)), nil
}
