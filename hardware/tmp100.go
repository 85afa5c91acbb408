package hardware

import "periph.io/x/conn/v3/i2c"

// TMP100 is the board surface temperature sensor.
type TMP100 struct {
	regs regDev
}

// NewTMP100 returns a driver for the sensor at addr on bus.
func NewTMP100(bus i2c.Bus, addr uint16) *TMP100 {
	return &TMP100{regs: regDev{dev: &i2c.Dev{Addr: addr, Bus: bus}}}
}

// Configure selects 12 bit resolution. The power-on default is 9 bit.
func (d *TMP100) Configure() error {
	return d.regs.write8(RegTMPConfig, TMP100Config12Bit)
}

// TempC returns the last converted temperature.
func (d *TMP100) TempC() (float32, error) {
	raw, err := d.regs.read16(RegTMPTemp)
	if err != nil {
		return 0, err
	}
	return float32(int16(raw)) / 256, nil
}
