package hardware

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

type brokenBus struct{}

func (brokenBus) Tx(addr uint16, w, r []byte) error { return errors.New("nack") }
func (brokenBus) SetSpeed(f physic.Frequency) error { return nil }
func (brokenBus) String() string                    { return "broken" }

func TestINA3221Voltages(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// 5.0 V: 625 counts << 3
			{Addr: 0x40, W: []byte{RegINABus1}, R: []byte{0x13, 0x88}},
			// 50 mV: 1250 counts << 3
			{Addr: 0x40, W: []byte{RegINAShunt1}, R: []byte{0x27, 0x10}},
			// -40 uV on channel 3
			{Addr: 0x40, W: []byte{RegINAShunt3}, R: []byte{0xFF, 0xF8}},
		},
		DontPanic: true,
	}
	ina := NewINA3221(bus, DefaultINA3221Addr)

	v, err := ina.BusVoltage(1)
	if err != nil {
		t.Fatalf("BusVoltage: %v", err)
	}
	if v < 4.9999 || v > 5.0001 {
		t.Fatalf("bus voltage = %v, want 5.0", v)
	}
	s, err := ina.ShuntVoltage(1)
	if err != nil {
		t.Fatalf("ShuntVoltage: %v", err)
	}
	if s < 0.04999 || s > 0.05001 {
		t.Fatalf("shunt voltage = %v, want 0.05", s)
	}
	s3, err := ina.ShuntVoltage(3)
	if err != nil {
		t.Fatalf("ShuntVoltage(3): %v", err)
	}
	if s3 > -39e-6 || s3 < -41e-6 {
		t.Fatalf("negative shunt voltage = %v, want -40e-6", s3)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("unplayed ops: %v", err)
	}
}

func TestINA3221Setup(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{RegINAConfig, 0x80, 0x00}},
			{Addr: 0x40, W: []byte{RegINAConfig}, R: []byte{0x71, 0x27}},
			// AVG field (bits 11..9) replaced with 0b101
			{Addr: 0x40, W: []byte{RegINAConfig, 0x7B, 0x27}},
		},
		DontPanic: true,
	}
	ina := NewINA3221(bus, DefaultINA3221Addr)
	if err := ina.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := ina.SetAveraging(256); err != nil {
		t.Fatalf("SetAveraging: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("unplayed ops: %v", err)
	}
}

func TestINA3221Errors(t *testing.T) {
	ina := NewINA3221(brokenBus{}, DefaultINA3221Addr)
	if _, err := ina.BusVoltage(2); err == nil {
		t.Fatalf("BusVoltage on failing bus returned no error")
	}
	if _, err := ina.ShuntVoltage(4); err == nil {
		t.Fatalf("ShuntVoltage(4) returned no error")
	}
	if err := ina.SetAveraging(100); err == nil {
		t.Fatalf("SetAveraging(100) returned no error")
	}
}

func TestTMP100(t *testing.T) {
	tests := []struct {
		raw  []byte
		want float32
	}{
		{[]byte{0x19, 0x00}, 25.0},
		{[]byte{0x1F, 0x40}, 31.25},
		{[]byte{0xE7, 0x00}, -25.0},
	}
	for _, tt := range tests {
		bus := &i2ctest.Playback{
			Ops:       []i2ctest.IO{{Addr: 0x48, W: []byte{RegTMPTemp}, R: tt.raw}},
			DontPanic: true,
		}
		got, err := NewTMP100(bus, DefaultTMP100Addr).TempC()
		if err != nil {
			t.Fatalf("TempC: %v", err)
		}
		if got != tt.want {
			t.Errorf("TempC(% X) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	if _, err := NewTMP100(brokenBus{}, DefaultTMP100Addr).TempC(); err == nil {
		t.Fatalf("TempC on failing bus returned no error")
	}
}

func TestINA3221Identify(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{RegINAMfgID}, R: []byte{0x54, 0x49}},
			{Addr: 0x40, W: []byte{RegINADieID}, R: []byte{0x32, 0x20}},
		},
		DontPanic: true,
	}
	die, err := NewINA3221(bus, DefaultINA3221Addr).Identify()
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if die != 0x3220 {
		t.Fatalf("die ID = 0x%04X, want 0x3220", die)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("unplayed ops: %v", err)
	}
}

func TestINA3221IdentifyMismatch(t *testing.T) {
	wrongMfg := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x40, W: []byte{RegINAMfgID}, R: []byte{0x00, 0x00}}},
		DontPanic: true,
	}
	if _, err := NewINA3221(wrongMfg, DefaultINA3221Addr).Identify(); err == nil {
		t.Fatalf("Identify accepted manufacturer ID 0x0000")
	}

	// INA219-style part behind a TI manufacturer ID
	wrongDie := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{RegINAMfgID}, R: []byte{0x54, 0x49}},
			{Addr: 0x40, W: []byte{RegINADieID}, R: []byte{0x22, 0x60}},
		},
		DontPanic: true,
	}
	if _, err := NewINA3221(wrongDie, DefaultINA3221Addr).Identify(); err == nil {
		t.Fatalf("Identify accepted die ID 0x2260")
	}
	if _, err := NewINA3221(brokenBus{}, DefaultINA3221Addr).Identify(); err == nil {
		t.Fatalf("Identify on failing bus returned no error")
	}
}

func TestTMP100Configure(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x48, W: []byte{RegTMPConfig, 0x60}}},
		DontPanic: true,
	}
	if err := NewTMP100(bus, DefaultTMP100Addr).Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("unplayed ops: %v", err)
	}
	if err := NewTMP100(brokenBus{}, DefaultTMP100Addr).Configure(); err == nil {
		t.Fatalf("Configure on failing bus returned no error")
	}
}
