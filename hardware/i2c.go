package hardware

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// OpenI2CBus opens an I2C bus by name ("" selects the first one found). The INA3221 and
// the TMP100 share the returned bus; periph serializes transactions on it.
func OpenI2CBus(name string) (i2c.BusCloser, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", name, err)
	}
	return bus, nil
}

// regDev reads and writes the 16-bit big-endian registers used by both sensors.
type regDev struct {
	dev *i2c.Dev
}

func (d regDev) read16(reg uint8) (uint16, error) {
	var r [2]byte
	if err := d.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, fmt.Errorf("read register 0x%02X at 0x%02X: %w", reg, d.dev.Addr, err)
	}
	return binary.BigEndian.Uint16(r[:]), nil
}

func (d regDev) write16(reg uint8, v uint16) error {
	w := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(w[1:], v)
	if err := d.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("write register 0x%02X at 0x%02X: %w", reg, d.dev.Addr, err)
	}
	return nil
}

func (d regDev) write8(reg, v uint8) error {
	if err := d.dev.Tx([]byte{reg, v}, nil); err != nil {
		return fmt.Errorf("write register 0x%02X at 0x%02X: %w", reg, d.dev.Addr, err)
	}
	return nil
}
