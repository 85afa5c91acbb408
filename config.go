package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linht/fem-controller/hardware"
	"github.com/linht/fem-controller/status"
	"github.com/linht/fem-controller/transport"
)

// Config is the controller's YAML configuration
type Config struct {
	Serial struct {
		Port        string        `yaml:"port"`
		Baud        int           `yaml:"baud"`
		Framing     string        `yaml:"framing"`
		Buffer      int           `yaml:"buffer"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"serial"`
	SPI struct {
		Device  string `yaml:"device"`
		SpeedHz uint32 `yaml:"speed_hz"`
	} `yaml:"spi"`
	I2C struct {
		Bus             string `yaml:"bus"`
		INA3221Addr     uint16 `yaml:"ina3221_addr"`
		INA3221Averages int    `yaml:"ina3221_averages"`
		TMP100Addr      uint16 `yaml:"tmp100_addr"`
		TMP100Enabled   bool   `yaml:"tmp100_enabled"`
	} `yaml:"i2c"`
	GPIO struct {
		Chip     string `yaml:"chip"`
		LNA1     int    `yaml:"lna1"`
		LNA2     int    `yaml:"lna2"`
		LED1     int    `yaml:"led1"`
		LED2     int    `yaml:"led2"`
		Atten1LE int    `yaml:"atten1_le"`
		Atten2LE int    `yaml:"atten2_le"`
	} `yaml:"gpio"`
	ADC struct {
		Device  string `yaml:"device"`
		IF1     string `yaml:"if1"`
		IF2     string `yaml:"if2"`
		DieTemp string `yaml:"die_temp"`
	} `yaml:"adc"`
	Cal struct {
		Root     string        `yaml:"root"`
		Chip     int           `yaml:"chip"`
		Channel1 int           `yaml:"channel1"`
		Channel2 int           `yaml:"channel2"`
		Period   time.Duration `yaml:"period"`
	} `yaml:"cal"`
	Status struct {
		Pace time.Duration `yaml:"pace"`
	} `yaml:"status"`
	HTTP struct {
		Enabled        bool          `yaml:"enabled"`
		Host           string        `yaml:"host"`
		Port           string        `yaml:"port"`
		StreamInterval time.Duration `yaml:"stream_interval"`
		Plugins        []string      `yaml:"plugins"`
	} `yaml:"http"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	framing transport.Framing
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// parseConfig decodes and validates a configuration document.
func parseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults fills in every value the file leaves empty and validates the rest
func (c *Config) setDefaults() error {
	if c.Serial.Port == "" {
		c.Serial.Port = "/dev/ttyAMA0"
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.Serial.Buffer == 0 {
		c.Serial.Buffer = transport.DefaultAccumulatorSize
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = 50 * time.Millisecond
	}
	f, err := transport.ParseFraming(c.Serial.Framing)
	if err != nil {
		return err
	}
	c.framing = f

	if c.SPI.Device == "" {
		c.SPI.Device = "/dev/spidev0.0"
	}
	if c.SPI.SpeedHz == 0 {
		c.SPI.SpeedHz = 1000000 // 1 MHz
	}

	if c.I2C.INA3221Addr == 0 {
		c.I2C.INA3221Addr = hardware.DefaultINA3221Addr
	}
	if c.I2C.INA3221Averages == 0 {
		c.I2C.INA3221Averages = 256
	}
	if c.I2C.TMP100Addr == 0 {
		c.I2C.TMP100Addr = hardware.DefaultTMP100Addr
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = "gpiochip0"
	}
	offsets := map[string]int{
		hardware.LineLNA1:     c.GPIO.LNA1,
		hardware.LineLNA2:     c.GPIO.LNA2,
		hardware.LineLED1:     c.GPIO.LED1,
		hardware.LineLED2:     c.GPIO.LED2,
		hardware.LineAtten1LE: c.GPIO.Atten1LE,
		hardware.LineAtten2LE: c.GPIO.Atten2LE,
	}
	seen := make(map[int]string, len(offsets))
	for name, off := range offsets {
		if other, dup := seen[off]; dup {
			return fmt.Errorf("gpio: %s and %s both use line %d", name, other, off)
		}
		seen[off] = name
	}

	if c.ADC.Device == "" {
		c.ADC.Device = hardware.DefaultIIODevice
	}
	if c.ADC.IF1 == "" {
		c.ADC.IF1 = "in_voltage0"
	}
	if c.ADC.IF2 == "" {
		c.ADC.IF2 = "in_voltage1"
	}
	if c.ADC.DieTemp == "" {
		c.ADC.DieTemp = "in_voltage2"
	}

	if c.Cal.Root == "" {
		c.Cal.Root = hardware.DefaultPWMRoot
	}
	if c.Cal.Channel1 == c.Cal.Channel2 {
		c.Cal.Channel2 = c.Cal.Channel1 + 1
	}
	if c.Cal.Period == 0 {
		c.Cal.Period = time.Microsecond // 1 MHz tone
	}

	if c.Status.Pace == 0 {
		c.Status.Pace = status.DefaultPace
	}

	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if len(c.HTTP.Plugins) == 0 {
		c.HTTP.Plugins = []string{"fem", "metrics"}
	}
	return nil
}

// lineConfig lists the outputs to request with their boot levels: LNAs on, LEDs off and
// latch enables low.
func (c *Config) lineConfig() []hardware.LineConfig {
	return []hardware.LineConfig{
		{Name: hardware.LineLNA1, Offset: c.GPIO.LNA1, Initial: 1},
		{Name: hardware.LineLNA2, Offset: c.GPIO.LNA2, Initial: 1},
		{Name: hardware.LineLED1, Offset: c.GPIO.LED1, Initial: 0},
		{Name: hardware.LineLED2, Offset: c.GPIO.LED2, Initial: 0},
		{Name: hardware.LineAtten1LE, Offset: c.GPIO.Atten1LE, Initial: 0},
		{Name: hardware.LineAtten2LE, Offset: c.GPIO.Atten2LE, Initial: 0},
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("logging level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("logging format %q (use text or json)", format)
	}
}
