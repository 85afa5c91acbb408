package hardware

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/linht/fem-controller/device"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.TrimSpace(string(b))
}

func TestIIOADC(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in_voltage0_raw"), "2048\n")
	writeFile(t, filepath.Join(dir, "in_voltage1_raw"), "70000\n")
	writeFile(t, filepath.Join(dir, "in_voltage2_raw"), "876\n")
	writeFile(t, filepath.Join(dir, "in_voltage_scale"), "0.805664062\n")

	adc, err := OpenIIOADC(dir, map[device.Channel]string{
		device.IF1:     "in_voltage0",
		device.IF2:     "in_voltage1",
		device.DieTemp: "in_voltage2",
	})
	if err != nil {
		t.Fatalf("OpenIIOADC: %v", err)
	}
	if v, err := adc.Read(device.IF1); err != nil || v != 2048 {
		t.Fatalf("Read(IF1) = %d, %v", v, err)
	}
	if v, err := adc.Read(device.IF2); err != nil || v != 0xFFFF {
		t.Fatalf("Read(IF2) = %d, %v, want clamp to 0xFFFF", v, err)
	}

	s, err := adc.channels[device.IF1].Read()
	if err != nil {
		t.Fatalf("IIOChannel.Read: %v", err)
	}
	if s.V < 1649*physic.MilliVolt || s.V > 1651*physic.MilliVolt {
		t.Fatalf("sample voltage = %s, want about 1.65V", s.V)
	}

	writeFile(t, filepath.Join(dir, "in_voltage2_raw"), "garbage")
	if _, err := adc.Read(device.DieTemp); err == nil {
		t.Fatalf("Read of unparsable value returned no error")
	}
}

func TestIIOADCMissingChannel(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenIIOADC(dir, map[device.Channel]string{device.IF1: "in_voltage0"}); err == nil {
		t.Fatalf("OpenIIOADC with missing attribute returned no error")
	}
	adc := &IIOADC{channels: map[device.Channel]*IIOChannel{}}
	if _, err := adc.Read(device.IF1); err == nil {
		t.Fatalf("Read of unconfigured channel returned no error")
	}
}

func TestCalTone(t *testing.T) {
	root := t.TempDir()
	pwm := filepath.Join(root, "pwmchip0", "pwm1")
	// pretend the kernel already exported the channel
	for _, attr := range []string{"enable", "period", "duty_cycle"} {
		writeFile(t, filepath.Join(pwm, attr), "0")
	}

	tone, err := OpenCalTone(root, 0, 1, 100*time.Microsecond)
	if err != nil {
		t.Fatalf("OpenCalTone: %v", err)
	}
	if got := readFile(t, filepath.Join(pwm, "period")); got != "100000" {
		t.Fatalf("period = %s", got)
	}
	if got := readFile(t, filepath.Join(pwm, "duty_cycle")); got != "50000" {
		t.Fatalf("duty_cycle = %s, want half the period", got)
	}
	if got := readFile(t, filepath.Join(pwm, "enable")); got != "0" {
		t.Fatalf("tone enabled after open")
	}

	if err := tone.Enable(true); err != nil {
		t.Fatalf("Enable(true): %v", err)
	}
	if got := readFile(t, filepath.Join(pwm, "enable")); got != "1" {
		t.Fatalf("enable = %s, want 1", got)
	}
	if err := tone.Enable(false); err != nil {
		t.Fatalf("Enable(false): %v", err)
	}
	if got := readFile(t, filepath.Join(pwm, "enable")); got != "0" {
		t.Fatalf("enable = %s, want 0", got)
	}
}

func TestCalToneRejectsBadPeriod(t *testing.T) {
	if _, err := OpenCalTone(t.TempDir(), 0, 0, 0); err == nil {
		t.Fatalf("OpenCalTone with zero period returned no error")
	}
}
