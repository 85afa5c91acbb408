// Package atten drives a pair of HMC624A 6-bit digital step attenuators that share one
// serial bus and are latched together.
package atten

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Attenuation range and resolution
const (
	StepDB  float32 = 0.5
	MaxDB   float32 = 31.5
	MaxStep         = 63
	regMask         = 0x3F
)

var (
	// ErrBus means the register could not be shifted out.
	ErrBus = errors.New("attenuator bus transaction failed")
	// ErrLatch means a latch enable line could not be driven.
	ErrLatch = errors.New("attenuator latch drive failed")
)

// Bus shifts bytes out to the attenuators. periph's spi.Conn satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// Line is a latch enable output. go-gpiocdev's *Line satisfies it.
type Line interface {
	SetValue(value int) error
}

// HalfSteps quantizes db to the nearest 0.5 dB step, saturating into 0..63.
// Exact quarter-dB ties round to the even half step.
func HalfSteps(db float32) int {
	h := math.RoundToEven(float64(db) * 2)
	switch {
	case math.IsNaN(h), h < 0:
		return 0
	case h > MaxStep:
		return MaxStep
	}
	return int(h)
}

// Register returns the 6-bit register value for db. The chip encoding is inverted:
// 0x3F is 0 dB and 0x00 is full attenuation.
func Register(db float32) uint8 {
	return uint8(MaxStep-HalfSteps(db)) & regMask
}

// Quantize returns the attenuation actually realized for db.
func Quantize(db float32) float32 {
	return float32(HalfSteps(db)) * StepDB
}

// DualHMC624A writes the same attenuation to both channels.
type DualHMC624A struct {
	bus Bus
	le1 Line
	le2 Line

	mu      sync.Mutex
	reg     uint8
	applied bool
}

// New returns a driver owning bus and both latch enable lines.
func New(bus Bus, le1, le2 Line) *DualHMC624A {
	return &DualHMC624A{bus: bus, le1: le1, le2: le2}
}

// SetAttenuation sets both channels to db (0 to 31.5 in 0.5 dB steps).
//
// Both latch enables are pulled low, the register is shifted out, then both latch enables
// are raised to commit the value on the two chips together. If any step fails the latches
// are not raised and the previous setting stays in effect.
func (d *DualHMC624A) SetAttenuation(db float32) error {
	reg := Register(db)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.le1.SetValue(0); err != nil {
		return fmt.Errorf("%w: LE1 low: %w", ErrLatch, err)
	}
	if err := d.le2.SetValue(0); err != nil {
		return fmt.Errorf("%w: LE2 low: %w", ErrLatch, err)
	}

	rx := make([]byte, 1)
	if err := d.bus.Tx([]byte{reg}, rx); err != nil {
		return fmt.Errorf("%w: shift 0x%02X: %w", ErrBus, reg, err)
	}

	if err := d.le1.SetValue(1); err != nil {
		return fmt.Errorf("%w: LE1 high: %w", ErrLatch, err)
	}
	if err := d.le2.SetValue(1); err != nil {
		return fmt.Errorf("%w: LE2 high: %w", ErrLatch, err)
	}

	d.reg = reg
	d.applied = true
	return nil
}

// Setting reports the last committed register value and its attenuation in dB.
// ok is false until a write has succeeded.
func (d *DualHMC624A) Setting() (reg uint8, db float32, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reg, float32(MaxStep-int(d.reg)) * StepDB, d.applied
}
