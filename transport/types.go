// Package transport holds the messages exchanged between the FEM controller and the
// MnC software, and the codec that puts them on the serial line.
package transport

// Command is a request sent from the MnC software to the FEM.
type Command interface {
	isCommand()
}

// MonitorRequest asks for the latest monitor snapshot.
type MonitorRequest struct{}

// Control carries a single setpoint change.
type Control struct {
	Action Action
}

func (MonitorRequest) isCommand() {}
func (Control) isCommand()        {}

// Action is an atomic setpoint change carried by a Control command.
type Action interface {
	isAction()
}

// SetIfLevel sets the IF "good" power threshold in dBm
type SetIfLevel struct {
	Threshold float32
}

// Lna1Power controls the power state of the LNA1 regulator
type Lna1Power struct {
	Enabled bool
}

// Lna2Power controls the power state of the LNA2 regulator
type Lna2Power struct {
	Enabled bool
}

// SetAtten sets the attenuation of both channels in dB (0 to 31.5)
type SetAtten struct {
	Level float32
}

// SetCal1 enables the calibration tone on channel 1
type SetCal1 struct {
	Enabled bool
}

// SetCal2 enables the calibration tone on channel 2
type SetCal2 struct {
	Enabled bool
}

func (SetIfLevel) isAction() {}
func (Lna1Power) isAction()  {}
func (Lna2Power) isAction()  {}
func (SetAtten) isAction()   {}
func (SetCal1) isAction()    {}
func (SetCal2) isAction()    {}

// Response is sent from the FEM back to the MnC software.
type Response interface {
	isResponse()
}

// MonitorReport answers a MonitorRequest.
type MonitorReport struct {
	Payload MonitorPayload
}

// Ack acknowledges a Control command.
type Ack struct{}

func (MonitorReport) isResponse() {}
func (Ack) isResponse()           {}

// MonitorPayload is one snapshot of every monitored quantity.
type MonitorPayload struct {
	IF1Power    float32 `json:"if1_power"`    // dBm
	IF2Power    float32 `json:"if2_power"`    // dBm
	ICTemp      float32 `json:"ic_temp"`      // °C, controller die
	SurfaceTemp float32 `json:"surface_temp"` // °C, board surface sensor
	LNA1Power   Power   `json:"lna1_power"`
	LNA2Power   Power   `json:"lna2_power"`
	AnalogPower Power   `json:"analog_power"`
}

// Power is the voltage and current of one monitored rail.
type Power struct {
	Voltage float32 `json:"voltage"` // V
	Current float32 `json:"current"` // A
}

// CommandName returns a short label for logs and metrics.
func CommandName(cmd Command) string {
	switch c := cmd.(type) {
	case MonitorRequest:
		return "monitor"
	case Control:
		return ActionName(c.Action)
	default:
		return "unknown"
	}
}

// ActionName returns a short label for logs and metrics.
func ActionName(a Action) string {
	switch a.(type) {
	case SetIfLevel:
		return "set_if_level"
	case Lna1Power:
		return "lna1_power"
	case Lna2Power:
		return "lna2_power"
	case SetAtten:
		return "set_atten"
	case SetCal1:
		return "set_cal1"
	case SetCal2:
		return "set_cal2"
	default:
		return "unknown"
	}
}
