package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/pborman/getopt"
	"go.bug.st/serial"

	"github.com/linht/fem-controller/atten"
	"github.com/linht/fem-controller/device"
	"github.com/linht/fem-controller/dispatch"
	"github.com/linht/fem-controller/hardware"
	"github.com/linht/fem-controller/monitor"
	"github.com/linht/fem-controller/observability"
	"github.com/linht/fem-controller/plugins"
	"github.com/linht/fem-controller/status"
)

// Server timeouts
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
)

// board holds every peripheral handle opened at bring-up.
type board struct {
	spi   *hardware.SPIBus
	lines *hardware.Lines
	i2c   interface{ Close() error }
	adc   *hardware.IIOADC
	ina   *hardware.INA3221
	tmp   *hardware.TMP100
	cal1  *hardware.CalTone
	cal2  *hardware.CalTone
	port  serial.Port
}

func (b *board) Close() {
	if b.port != nil {
		b.port.Close()
	}
	if b.i2c != nil {
		b.i2c.Close()
	}
	if b.lines != nil {
		if err := b.lines.Close(); err != nil {
			slog.Error("Failed to release GPIO lines", "error", err)
		}
	}
	if b.spi != nil {
		b.spi.Close()
	}
}

func main() {
	configPath := getopt.StringLong("config", 'c', "config.yaml", "configuration file")
	help := getopt.BoolLong("help", 'h', "display help")
	getopt.Parse()
	if *help {
		getopt.Usage()
		os.Exit(0)
	}

	// Setup structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err, "path", *configPath)
		os.Exit(1)
	}
	logger, err := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		slog.Error("Invalid logging config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	slog.Info("Configuration loaded", "path", *configPath)

	metrics, err := observability.NewFEMCollector(nil)
	if err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	b, err := bringUp(cfg)
	if err != nil {
		slog.Error("Hardware bring-up failed", "error", err)
		if b != nil {
			b.Close()
		}
		os.Exit(1)
	}
	defer b.Close()

	arb := device.NewArbiter(b.adc)
	opts := []monitor.Option{monitor.WithLogger(logger), monitor.WithMetrics(metrics)}
	if b.tmp != nil {
		opts = append(opts, monitor.WithSurfaceSensor(b.tmp))
	}
	agg := monitor.New(arb, b.ina, opts...)

	attenuator := atten.New(b.spi, b.lines.Line(hardware.LineAtten1LE), b.lines.Line(hardware.LineAtten2LE))
	disp := dispatch.New(arb, agg, dispatch.Actuators{
		LNA1:  b.lines.Line(hardware.LineLNA1),
		LNA2:  b.lines.Line(hardware.LineLNA2),
		Atten: attenuator,
		Cal1:  b.cal1,
		Cal2:  b.cal2,
	}, dispatch.WithLogger(logger), dispatch.WithMetrics(metrics), dispatch.WithObserver(func(s dispatch.State) {
		logger.Debug("Protocol state", "state", s)
	}))
	if err := disp.Boot(); err != nil {
		slog.Error("Failed to apply boot configuration", "error", err)
		b.Close()
		os.Exit(1)
	}
	slog.Info("FEM booted", "attenuation_db", 0, "lna1", true, "lna2", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	link := dispatch.NewLink(b.port, cfg.framing, cfg.Serial.Buffer, disp, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Run(ctx); err != nil {
			slog.Error("MnC link stopped", "error", err)
			cancel()
		}
	}()

	loop := status.NewLoop(arb, b.lines.Line(hardware.LineLED1), b.lines.Line(hardware.LineLED2),
		cfg.Status.Pace, logger, metrics)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	var app *fiber.App
	var loaded []plugins.Plugin
	if cfg.HTTP.Enabled {
		app, loaded, err = startHTTP(cfg, *configPath, disp, arb, attenuator, metrics)
		if err != nil {
			slog.Error("Failed to initialize plugins", "error", err)
			cancel()
			wg.Wait()
			b.Close()
			os.Exit(1)
		}
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		slog.Info("Shutting down...")
	case <-ctx.Done():
	}
	cancel()

	if app != nil {
		for _, p := range loaded {
			if err := p.Shutdown(); err != nil {
				slog.Error("Plugin shutdown error", "name", p.Name(), "error", err)
			}
		}
		if err := app.ShutdownWithContext(context.Background()); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}
	wg.Wait()
}

// bringUp opens every peripheral. Any failure here is fatal; the partially opened board
// is returned so the caller can release it.
func bringUp(cfg *Config) (*board, error) {
	b := &board{}
	var err error

	if err = hardware.Init(); err != nil {
		return b, err
	}

	if b.spi, err = hardware.OpenSPIBus(cfg.SPI.Device, cfg.SPI.SpeedHz); err != nil {
		return b, err
	}
	slog.Info("Attenuator bus opened", "spi", b.spi)

	if b.lines, err = hardware.OpenLines(cfg.GPIO.Chip, cfg.lineConfig()); err != nil {
		return b, err
	}
	slog.Info("GPIO lines requested", "info", b.lines.Info())

	bus, err := hardware.OpenI2CBus(cfg.I2C.Bus)
	if err != nil {
		return b, err
	}
	b.i2c = bus
	b.ina = hardware.NewINA3221(bus, cfg.I2C.INA3221Addr)
	// the rails still read with a failed setup, only less averaged
	if die, err := b.ina.Identify(); err != nil {
		slog.Error("INA3221 identification failed", "error", err)
	} else {
		slog.Info("INA3221 found", "addr", fmt.Sprintf("0x%02X", cfg.I2C.INA3221Addr), "die_id", fmt.Sprintf("0x%04X", die))
	}
	if err := b.ina.Reset(); err != nil {
		slog.Error("INA3221 failed to reset", "error", err)
	}
	if err := b.ina.SetAveraging(cfg.I2C.INA3221Averages); err != nil {
		slog.Error("INA3221 failed to set averages", "error", err)
	}
	if cfg.I2C.TMP100Enabled {
		b.tmp = hardware.NewTMP100(bus, cfg.I2C.TMP100Addr)
		if err := b.tmp.Configure(); err != nil {
			slog.Error("TMP100 failed to configure", "error", err)
		}
	}

	if b.adc, err = hardware.OpenIIOADC(cfg.ADC.Device, map[device.Channel]string{
		device.IF1:     cfg.ADC.IF1,
		device.IF2:     cfg.ADC.IF2,
		device.DieTemp: cfg.ADC.DieTemp,
	}); err != nil {
		return b, err
	}

	if b.cal1, err = hardware.OpenCalTone(cfg.Cal.Root, cfg.Cal.Chip, cfg.Cal.Channel1, cfg.Cal.Period); err != nil {
		return b, fmt.Errorf("calibration tone 1: %w", err)
	}
	if b.cal2, err = hardware.OpenCalTone(cfg.Cal.Root, cfg.Cal.Chip, cfg.Cal.Channel2, cfg.Cal.Period); err != nil {
		return b, fmt.Errorf("calibration tone 2: %w", err)
	}

	b.port, err = serial.Open(cfg.Serial.Port, &serial.Mode{
		BaudRate: cfg.Serial.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return b, fmt.Errorf("failed to open serial port %s: %w", cfg.Serial.Port, err)
	}
	if err := b.port.SetReadTimeout(cfg.Serial.ReadTimeout); err != nil {
		return b, fmt.Errorf("failed to set serial read timeout: %w", err)
	}
	slog.Info("MnC serial port opened", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud, "framing", cfg.framing)
	return b, nil
}

func startHTTP(cfg *Config, configPath string, disp *dispatch.Dispatcher, arb *device.Arbiter, attenuator *atten.DualHMC624A, metrics *observability.FEMCollector) (*fiber.App, []plugins.Plugin, error) {
	app := fiber.New(fiber.Config{
		ReadTimeout:           ServerReadTimeout,
		WriteTimeout:          ServerWriteTimeout,
		AppName:               "FEM Controller",
		DisableStartupMessage: true,
	})
	app.Use(fiberLogger.New(fiberLogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	loaded, err := plugins.Load(app, cfg.HTTP.Plugins, func(name string) interface{} {
		switch name {
		case "fem":
			return plugins.FEMConfig{
				Dispatcher:     disp,
				Arbiter:        arb,
				Attenuator:     attenuator,
				StreamInterval: cfg.HTTP.StreamInterval,
			}
		case "metrics":
			return plugins.MetricsConfig{Handler: metrics.Handler()}
		case "settings":
			return plugins.SettingsConfig{
				Path: configPath,
				Validate: func(data []byte) error {
					_, err := parseConfig(data)
					return err
				},
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	go func() {
		slog.Info("Starting HTTP server", "address", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("HTTP server stopped", "error", err, "address", addr)
		}
	}()
	return app, loaded, nil
}
