package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// INA3221 is a three channel shunt and bus voltage monitor.
type INA3221 struct {
	regs regDev
}

// NewINA3221 returns a driver for the chip at addr on bus. No transaction is made.
func NewINA3221(bus i2c.Bus, addr uint16) *INA3221 {
	return &INA3221{regs: regDev{dev: &i2c.Dev{Addr: addr, Bus: bus}}}
}

// Identify checks the manufacturer ID and returns the die ID.
func (d *INA3221) Identify() (uint16, error) {
	mfg, err := d.regs.read16(RegINAMfgID)
	if err != nil {
		return 0, err
	}
	if mfg != INAManufacturerTI {
		return 0, fmt.Errorf("unexpected manufacturer ID 0x%04X at 0x%02X", mfg, d.regs.dev.Addr)
	}
	die, err := d.regs.read16(RegINADieID)
	if err != nil {
		return 0, err
	}
	if die != INADieID {
		return die, fmt.Errorf("unexpected die ID 0x%04X, not an INA3221", die)
	}
	return die, nil
}

// Reset restores the power-on configuration.
func (d *INA3221) Reset() error {
	return d.regs.write16(RegINAConfig, INAConfigReset)
}

// SetAveraging selects how many samples each conversion averages. n must be one of
// 1, 4, 16, 64, 128, 256, 512 or 1024.
func (d *INA3221) SetAveraging(n int) error {
	field := -1
	for i, v := range inaAverages {
		if v == n {
			field = i
		}
	}
	if field < 0 {
		return fmt.Errorf("unsupported averaging count %d", n)
	}
	cfg, err := d.regs.read16(RegINAConfig)
	if err != nil {
		return err
	}
	cfg = cfg&^INAConfigAvgMask | uint16(field)<<INAConfigAvgShift
	return d.regs.write16(RegINAConfig, cfg)
}

// BusVoltage returns the bus voltage of channel ch (1 to 3) in volts.
func (d *INA3221) BusVoltage(ch int) (float32, error) {
	if ch < 1 || ch > 3 {
		return 0, fmt.Errorf("invalid INA3221 channel %d", ch)
	}
	raw, err := d.regs.read16(uint8(RegINABus1 + 2*(ch-1)))
	if err != nil {
		return 0, err
	}
	return float32(int16(raw)>>INAValueShift) * INABusLSB, nil
}

// ShuntVoltage returns the shunt voltage of channel ch (1 to 3) in volts.
func (d *INA3221) ShuntVoltage(ch int) (float32, error) {
	if ch < 1 || ch > 3 {
		return 0, fmt.Errorf("invalid INA3221 channel %d", ch)
	}
	raw, err := d.regs.read16(uint8(RegINAShunt1 + 2*(ch-1)))
	if err != nil {
		return 0, err
	}
	return float32(int16(raw)>>INAValueShift) * INAShuntLSB, nil
}
