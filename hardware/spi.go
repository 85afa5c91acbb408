// Package hardware binds the controller to Linux peripherals: the attenuator SPI bus,
// GPIO lines, the I2C sensors, the IIO ADC and the calibration tone PWM outputs.
package hardware

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Init loads the periph.io host drivers. It is safe to call more than once.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph.io: %w", err)
	}
	return nil
}

// SPIBus is the shift register bus shared by both HMC624A attenuators.
type SPIBus struct {
	conn   spi.Conn
	port   spi.PortCloser
	device string
	speed  physic.Frequency
}

// OpenSPIBus opens an SPI device using periph.io
func OpenSPIBus(device string, speedHz uint32) (*SPIBus, error) {
	if err := Init(); err != nil {
		return nil, err
	}

	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI device %s: %w", device, err)
	}
	bus, err := newSPIBus(port, device, speedHz)
	if err != nil {
		port.Close()
		return nil, err
	}
	return bus, nil
}

func newSPIBus(port spi.PortCloser, device string, speedHz uint32) (*SPIBus, error) {
	speed := physic.Frequency(speedHz) * physic.Hertz
	// HMC624A samples on the rising clock edge, SPI Mode 0
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SPI device: %w", err)
	}
	return &SPIBus{conn: conn, port: port, device: device, speed: speed}, nil
}

// Tx performs a full-duplex transfer. r may be nil or shorter than w.
func (s *SPIBus) Tx(w, r []byte) error {
	if s.conn == nil {
		return fmt.Errorf("SPI device not open")
	}
	if len(r) != len(w) {
		r = make([]byte, len(w))
	}
	if err := s.conn.Tx(w, r); err != nil {
		return fmt.Errorf("SPI transfer failed: %w", err)
	}
	return nil
}

// Close closes the SPI device
func (s *SPIBus) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.conn = nil
	return err
}

func (s *SPIBus) String() string {
	if s.conn == nil {
		return fmt.Sprintf("%s (closed)", s.device)
	}
	return fmt.Sprintf("%s @ %s", s.device, s.speed)
}
