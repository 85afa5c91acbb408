package atten

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

type recorder struct {
	events []string
}

type fakeLine struct {
	name string
	rec  *recorder
	err  error
}

func (l *fakeLine) SetValue(v int) error {
	if l.err != nil {
		return l.err
	}
	if v == 0 {
		l.rec.events = append(l.rec.events, l.name+" low")
	} else {
		l.rec.events = append(l.rec.events, l.name+" high")
	}
	return nil
}

type fakeBus struct {
	rec     *recorder
	err     error
	written []byte
}

func (b *fakeBus) Tx(w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	b.written = append(b.written, w...)
	b.rec.events = append(b.rec.events, "shift")
	return nil
}

func newFake() (*DualHMC624A, *fakeBus, *fakeLine, *fakeLine, *recorder) {
	rec := &recorder{}
	bus := &fakeBus{rec: rec}
	le1 := &fakeLine{name: "le1", rec: rec}
	le2 := &fakeLine{name: "le2", rec: rec}
	return New(bus, le1, le2), bus, le1, le2, rec
}

func TestRegisterScenarios(t *testing.T) {
	tests := []struct {
		db   float32
		want uint8
	}{
		{31.5, 0x00},
		{0.0, 0x3F},
		{16.25, 0x1F},
		{16.0, 0x1F},
		{0.5, 0x3E},
		{10.2, 0x2B},
		// quarter dB ties go to the even half step
		{0.25, 0x3F},
		{0.75, 0x3D},
		{16.75, 0x1D},
		{31.25, 0x01},
		// just either side of a tie
		{0.26, 0x3E},
		{16.74, 0x1E},
	}
	for _, tt := range tests {
		if got := Register(tt.db); got != tt.want {
			t.Errorf("Register(%v) = 0x%02X, want 0x%02X", tt.db, got, tt.want)
		}
	}
}

func TestRegisterOnHalfStepGrid(t *testing.T) {
	for i := 0; i <= 63; i++ {
		db := float32(i) / 2
		if got, want := Register(db), uint8(63-i); got != want {
			t.Fatalf("Register(%v) = 0x%02X, want 0x%02X", db, got, want)
		}
		if got := Quantize(db); got != db {
			t.Fatalf("Quantize(%v) = %v", db, got)
		}
	}
}

func TestRegisterMatchesFormulaOverRange(t *testing.T) {
	// every 0.05 dB from 0 to 31.5
	for i := 0; i <= 630; i++ {
		v := float32(i) * 0.05
		want := uint8((63 - int(math.RoundToEven(float64(v)*2))) & 0x3F)
		if got := Register(v); got != want {
			t.Fatalf("Register(%v) = 0x%02X, want 0x%02X", v, got, want)
		}
		if Register(Quantize(v)) != want {
			t.Fatalf("Register not idempotent under quantization at %v", v)
		}
	}
}

func TestRegisterSaturates(t *testing.T) {
	if got := Register(-3); got != 0x3F {
		t.Errorf("Register(-3) = 0x%02X, want 0x3F", got)
	}
	if got := Register(100); got != 0x00 {
		t.Errorf("Register(100) = 0x%02X, want 0x00", got)
	}
}

func TestSetAttenuationSequence(t *testing.T) {
	d, bus, _, _, rec := newFake()
	if err := d.SetAttenuation(16.25); err != nil {
		t.Fatalf("SetAttenuation: %v", err)
	}
	want := []string{"le1 low", "le2 low", "shift", "le1 high", "le2 high"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	if !reflect.DeepEqual(bus.written, []byte{0x1F}) {
		t.Fatalf("shifted % X, want 1F", bus.written)
	}
	reg, db, ok := d.Setting()
	if !ok || reg != 0x1F || db != 16.0 {
		t.Fatalf("Setting() = 0x%02X, %v, %v", reg, db, ok)
	}
}

func TestBusFailureLeavesLatchesLow(t *testing.T) {
	d, bus, _, _, rec := newFake()
	if err := d.SetAttenuation(10); err != nil {
		t.Fatalf("SetAttenuation: %v", err)
	}
	rec.events = nil
	bus.err = errors.New("spi timeout")

	err := d.SetAttenuation(20)
	if !errors.Is(err, ErrBus) {
		t.Fatalf("err = %v, want ErrBus", err)
	}
	if errors.Is(err, ErrLatch) {
		t.Fatalf("bus failure reported as latch failure")
	}
	for _, e := range rec.events {
		if e == "le1 high" || e == "le2 high" {
			t.Fatalf("latch raised after failed shift: %v", rec.events)
		}
	}
	if _, db, _ := d.Setting(); db != 10 {
		t.Fatalf("setting after failed write = %v dB, want 10", db)
	}
}

func TestLatchFailureAborts(t *testing.T) {
	d, bus, le1, _, _ := newFake()
	le1.err = errors.New("line busy")
	if err := d.SetAttenuation(5); !errors.Is(err, ErrLatch) {
		t.Fatalf("err = %v, want ErrLatch", err)
	}
	if len(bus.written) != 0 {
		t.Fatalf("shifted data after latch failure")
	}
	if _, _, ok := d.Setting(); ok {
		t.Fatalf("setting recorded after failed write")
	}
}
