package plugins

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/linht/fem-controller/atten"
	"github.com/linht/fem-controller/device"
	"github.com/linht/fem-controller/dispatch"
	"github.com/linht/fem-controller/transport"
)

// DefaultStreamInterval is how often the monitor stream pushes a snapshot.
const DefaultStreamInterval = time.Second

// AttenuatorSetting reports the attenuation last committed to the hardware.
type AttenuatorSetting interface {
	Setting() (reg uint8, db float32, ok bool)
}

// FEMConfig wires the FEM plugin to the running controller.
type FEMConfig struct {
	Dispatcher     *dispatch.Dispatcher
	Arbiter        *device.Arbiter
	Attenuator     AttenuatorSetting
	StreamInterval time.Duration
}

// FEMPlugin exposes the MnC commands over HTTP. Every request goes through the same
// dispatcher as the serial link, so commands from both surfaces are serialized.
type FEMPlugin struct {
	config FEMConfig

	streams   map[string]*stream
	streamsMu sync.Mutex
}

type stream struct {
	id   string
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

// close stops the pusher and unblocks the handler's pending read.
func (s *stream) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// NewFEMPlugin creates a new FEM plugin instance
func NewFEMPlugin(cfg FEMConfig) (*FEMPlugin, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("fem plugin requires a dispatcher")
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = DefaultStreamInterval
	}
	return &FEMPlugin{
		config:  cfg,
		streams: make(map[string]*stream),
	}, nil
}

// Name returns the plugin identifier
func (p *FEMPlugin) Name() string {
	return "fem"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *FEMPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/fem")

	api.Get("/monitor", p.handleMonitor)
	api.Get("/state", p.handleState)

	api.Post("/if-threshold", p.handleSetThreshold)
	api.Post("/lna/:ch", p.handleSetLNA)
	api.Post("/cal/:ch", p.handleSetCal)
	api.Post("/attenuation", p.handleSetAttenuation)

	api.Get("/stream", websocket.New(p.handleStream))

	slog.Info("FEM plugin routes registered")
}

// Shutdown closes every open monitor stream
func (p *FEMPlugin) Shutdown() error {
	p.streamsMu.Lock()
	defer p.streamsMu.Unlock()
	for id, s := range p.streams {
		s.close()
		delete(p.streams, id)
	}
	return nil
}

func (p *FEMPlugin) monitor() (transport.MonitorPayload, error) {
	resp := p.config.Dispatcher.Do(transport.MonitorRequest{})
	rep, ok := resp.(transport.MonitorReport)
	if !ok {
		return transport.MonitorPayload{}, fmt.Errorf("unexpected response %T to monitor request", resp)
	}
	return rep.Payload, nil
}

func (p *FEMPlugin) control(c *fiber.Ctx, a transport.Action, message string) error {
	resp := p.config.Dispatcher.Do(transport.Control{Action: a})
	if _, ok := resp.(transport.Ack); !ok {
		return SendErrorMessage(c, fiber.StatusInternalServerError, fmt.Sprintf("unexpected response %T", resp))
	}
	slog.Info("Control applied via HTTP", "action", transport.ActionName(a), "ip", c.IP())
	return SendSuccess(c, nil, message)
}

func (p *FEMPlugin) handleMonitor(c *fiber.Ctx) error {
	payload, err := p.monitor()
	if err != nil {
		return SendError(c, fiber.StatusInternalServerError, err)
	}
	return SendSuccess(c, payload, "")
}

func (p *FEMPlugin) handleState(c *fiber.Ctx) error {
	data := map[string]interface{}{
		"protocol_state": p.config.Dispatcher.State().String(),
	}
	if p.config.Arbiter != nil {
		s := p.config.Arbiter.Snapshot()
		data["if_good_threshold"] = s.IfGoodThreshold
		data["last_monitor"] = s.LastMonitor
	}
	if p.config.Attenuator != nil {
		if reg, db, ok := p.config.Attenuator.Setting(); ok {
			data["attenuation"] = db
			data["attenuation_register"] = fmt.Sprintf("0x%02X", reg)
		}
	}
	return SendSuccess(c, data, "")
}

func (p *FEMPlugin) handleSetThreshold(c *fiber.Ctx) error {
	var req struct {
		Threshold *float32 `json:"threshold"`
	}
	if err := c.BodyParser(&req); err != nil || req.Threshold == nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request: threshold (dBm) required")
	}
	return p.control(c, transport.SetIfLevel{Threshold: *req.Threshold},
		fmt.Sprintf("IF good threshold set to %.2f dBm", *req.Threshold))
}

func parseChannel(c *fiber.Ctx) (int, bool) {
	switch c.Params("ch") {
	case "1", "ch1":
		return 1, true
	case "2", "ch2":
		return 2, true
	}
	return 0, false
}

func parseEnabled(c *fiber.Ctx) (bool, bool) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return false, false
	}
	return *req.Enabled, true
}

func (p *FEMPlugin) handleSetLNA(c *fiber.Ctx) error {
	ch, ok := parseChannel(c)
	if !ok {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid channel: use 1 or 2")
	}
	enabled, ok := parseEnabled(c)
	if !ok {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request: enabled required")
	}
	var a transport.Action = transport.Lna1Power{Enabled: enabled}
	if ch == 2 {
		a = transport.Lna2Power{Enabled: enabled}
	}
	return p.control(c, a, fmt.Sprintf("LNA%d power %s", ch, onOff(enabled)))
}

func (p *FEMPlugin) handleSetCal(c *fiber.Ctx) error {
	ch, ok := parseChannel(c)
	if !ok {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid channel: use 1 or 2")
	}
	enabled, ok := parseEnabled(c)
	if !ok {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request: enabled required")
	}
	var a transport.Action = transport.SetCal1{Enabled: enabled}
	if ch == 2 {
		a = transport.SetCal2{Enabled: enabled}
	}
	return p.control(c, a, fmt.Sprintf("Calibration tone %d %s", ch, onOff(enabled)))
}

func (p *FEMPlugin) handleSetAttenuation(c *fiber.Ctx) error {
	var req struct {
		Level *float32 `json:"level"`
	}
	if err := c.BodyParser(&req); err != nil || req.Level == nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Invalid request: level (dB) required")
	}
	if *req.Level < 0 || *req.Level > atten.MaxDB {
		return SendErrorMessage(c, fiber.StatusBadRequest, fmt.Sprintf("Attenuation must be between 0 and %.1f dB", atten.MaxDB))
	}
	return p.control(c, transport.SetAtten{Level: *req.Level},
		fmt.Sprintf("Attenuation set to %.1f dB", atten.Quantize(*req.Level)))
}

// handleStream pushes a fresh monitor snapshot at the configured interval until the
// client goes away or the plugin shuts down. The handler goroutine only reads; it does not
// return before the pusher has stopped, since the connection is recycled afterwards.
func (p *FEMPlugin) handleStream(c *websocket.Conn) {
	s := &stream{id: uuid.New().String(), conn: c, done: make(chan struct{})}
	p.streamsMu.Lock()
	p.streams[s.id] = s
	p.streamsMu.Unlock()
	slog.Info("Monitor stream opened", "session", s.id)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.pushSnapshots(s)
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	s.close()
	wg.Wait()
	p.streamsMu.Lock()
	delete(p.streams, s.id)
	p.streamsMu.Unlock()
	slog.Info("Monitor stream closed", "session", s.id)
}

func (p *FEMPlugin) pushSnapshots(s *stream) {
	ticker := time.NewTicker(p.config.StreamInterval)
	defer ticker.Stop()
	for {
		payload, err := p.monitor()
		if err != nil {
			s.conn.WriteJSON(fiber.Map{"error": err.Error()})
			s.close()
			return
		}
		if err := s.conn.WriteJSON(fiber.Map{"session": s.id, "monitor": payload}); err != nil {
			s.close()
			return
		}
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func init() {
	Register("fem", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(FEMConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for fem plugin: expected FEMConfig")
		}
		return NewFEMPlugin(cfg)
	})
}
