package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"

	"github.com/linht/fem-controller/device"
)

// DefaultIIODevice is the sysfs directory of the board ADC.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

// IIOChannel is one input of a Linux IIO ADC read through sysfs.
type IIOChannel struct {
	name    string
	rawPath string
	scale   float64 // mV per count, 0 when the driver does not publish it
}

// OpenIIOChannel opens attribute attr (for example "in_voltage0") of the IIO device in dir.
func OpenIIOChannel(dir, attr string) (*IIOChannel, error) {
	c := &IIOChannel{name: attr, rawPath: filepath.Join(dir, attr+"_raw")}
	if _, err := os.Stat(c.rawPath); err != nil {
		return nil, fmt.Errorf("IIO channel %s: %w", attr, err)
	}
	// per-channel scale first, then the shared one
	for _, p := range []string{attr + "_scale", strings.TrimRight(attr, "0123456789") + "_scale"} {
		if v, err := readFloat(filepath.Join(dir, p)); err == nil {
			c.scale = v
			break
		}
	}
	return c, nil
}

func (c *IIOChannel) String() string {
	return c.name
}

// Read performs one conversion.
func (c *IIOChannel) Read() (analog.Sample, error) {
	b, err := os.ReadFile(c.rawPath)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("read %s: %w", c.name, err)
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("parse %s: %w", c.name, err)
	}
	s := analog.Sample{Raw: int32(raw)}
	if c.scale != 0 {
		s.V = physic.ElectricPotential(float64(raw) * c.scale * float64(physic.MilliVolt))
	}
	return s, nil
}

// IIOADC maps the controller's ADC channels onto IIO channels.
type IIOADC struct {
	channels map[device.Channel]*IIOChannel
}

// OpenIIOADC opens the IF1, IF2 and die temperature channels of the IIO device in dir.
func OpenIIOADC(dir string, attrs map[device.Channel]string) (*IIOADC, error) {
	a := &IIOADC{channels: make(map[device.Channel]*IIOChannel, len(attrs))}
	for ch, attr := range attrs {
		c, err := OpenIIOChannel(dir, attr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ch, err)
		}
		a.channels[ch] = c
	}
	return a, nil
}

// Read returns the raw count of ch, clamped to 16 bits.
func (a *IIOADC) Read(ch device.Channel) (uint16, error) {
	c, ok := a.channels[ch]
	if !ok {
		return 0, fmt.Errorf("ADC channel %s not configured", ch)
	}
	s, err := c.Read()
	if err != nil {
		return 0, err
	}
	switch {
	case s.Raw < 0:
		return 0, nil
	case s.Raw > 0xFFFF:
		return 0xFFFF, nil
	}
	return uint16(s.Raw), nil
}

func readFloat(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}
