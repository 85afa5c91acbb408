package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linht/fem-controller/transport"
)

const sampleConfig = `
serial:
  port: /dev/ttyS3
  framing: unframed
gpio:
  chip: gpiochip1
  lna1: 17
  lna2: 27
  led1: 22
  led2: 23
  atten1_le: 24
  atten2_le: 25
status:
  pace: 20ms
http:
  enabled: true
logging:
  level: debug
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyS3" || cfg.Serial.Baud != 115200 {
		t.Fatalf("serial = %+v", cfg.Serial)
	}
	if cfg.framing != transport.Unframed {
		t.Fatalf("framing = %v", cfg.framing)
	}
	if cfg.Serial.Buffer != 256 {
		t.Fatalf("buffer = %d", cfg.Serial.Buffer)
	}
	if cfg.Status.Pace != 20*time.Millisecond {
		t.Fatalf("pace = %s", cfg.Status.Pace)
	}
	if cfg.I2C.INA3221Addr != 0x40 || cfg.I2C.INA3221Averages != 256 || cfg.I2C.TMP100Addr != 0x48 {
		t.Fatalf("i2c = %+v", cfg.I2C)
	}
	if cfg.HTTP.Host != "127.0.0.1" || len(cfg.HTTP.Plugins) != 2 {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
	if cfg.Cal.Channel1 == cfg.Cal.Channel2 {
		t.Fatalf("calibration channels collide: %+v", cfg.Cal)
	}

	lines := cfg.lineConfig()
	if len(lines) != 6 {
		t.Fatalf("line config has %d entries", len(lines))
	}
	for _, l := range lines {
		want := 0
		if l.Name == "lna1" || l.Name == "lna2" {
			want = 1
		}
		if l.Initial != want {
			t.Errorf("line %s boots at %d, want %d", l.Name, l.Initial, want)
		}
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad framing", "serial:\n  framing: hdlc\n"},
		{"duplicate gpio", "gpio:\n  lna1: 3\n  lna2: 3\n  led1: 4\n  led2: 5\n  atten1_le: 6\n  atten2_le: 7\n"},
		{"bad yaml", "serial: [\n"},
	}
	for _, tt := range tests {
		if _, err := loadConfig(writeConfig(t, tt.content)); err == nil {
			t.Errorf("%s: loadConfig returned no error", tt.name)
		}
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file: loadConfig returned no error")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug", "json"); err != nil {
		t.Fatalf("newLogger(debug, json): %v", err)
	}
	if _, err := newLogger("", ""); err != nil {
		t.Fatalf("newLogger defaults: %v", err)
	}
	if _, err := newLogger("loud", "text"); err == nil {
		t.Fatalf("newLogger accepted unknown level")
	}
	if _, err := newLogger("info", "xml"); err == nil {
		t.Fatalf("newLogger accepted unknown format")
	}
}
