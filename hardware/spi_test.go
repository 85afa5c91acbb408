package hardware

import (
	"testing"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/linht/fem-controller/atten"
)

func TestSPIBusDrivesAttenuator(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0x1F}, R: []byte{0x00}},
			},
			DontPanic: true,
		},
	}
	bus, err := newSPIBus(port, "SPI0.0", 1000000)
	if err != nil {
		t.Fatalf("newSPIBus: %v", err)
	}

	d := atten.New(bus, nopLine{}, nopLine{})
	if err := d.SetAttenuation(16.25); err != nil {
		t.Fatalf("SetAttenuation: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Tx([]byte{0}, nil); err == nil {
		t.Fatalf("Tx on closed bus returned no error")
	}
}

type nopLine struct{}

func (nopLine) SetValue(int) error { return nil }
