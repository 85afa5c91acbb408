// Package convert turns raw converter counts into physical units.
//
// All constants come from the datasheets of the parts on the FEM and are reproduced exactly.
package convert

// ADC parameters
const (
	ADCBits = 12
	// ADCRefVolt is the ADC reference voltage
	ADCRefVolt float32 = 3.3
)

// Die temperature sensor (RP2040 datasheet 4.9.5)
const (
	TempRefC       float32 = 27.0
	TempRefVolt    float32 = 0.706
	TempSlopeVoltC float32 = 0.001721
)

// Log detector slope/intercept and the fixed coupler tap loss
const (
	DetectorSlopeVoltDB float32 = 0.0215
	DetectorIntercept   float32 = -47.0
	CouplerTapDB        float32 = 20.0
)

// Current sense resistors in ohms
const (
	LNASenseOhms    float32 = 1.0
	AnalogSenseOhms float32 = 0.2
)

// Scaled maps 12-bit counts onto 0..1.
func Scaled(counts uint16) float32 {
	s := float32(counts) / float32(uint32(1)<<ADCBits)
	if s > 1 {
		return 1
	}
	return s
}

// Volts converts counts to the voltage at the ADC pin.
func Volts(counts uint16) float32 {
	return Scaled(counts) * ADCRefVolt
}

// DieTempC converts the die temperature sensor voltage to degrees C.
func DieTempC(v float32) float32 {
	return TempRefC - (v-TempRefVolt)/TempSlopeVoltC
}

// DetectorDBm converts the IF log detector voltage to dBm at the RF input.
func DetectorDBm(v float32) float32 {
	return v/DetectorSlopeVoltDB + DetectorIntercept + CouplerTapDB
}

// ShuntCurrent converts a shunt voltage to amps for the given sense resistor.
func ShuntCurrent(shuntVolts, senseOhms float32) float32 {
	if senseOhms == 1 {
		return shuntVolts
	}
	return shuntVolts / senseOhms
}
