package plugins

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// MetricsPlugin serves the Prometheus exposition endpoint.
type MetricsPlugin struct {
	handler http.Handler
	path    string
}

// MetricsConfig holds the metrics plugin configuration
type MetricsConfig struct {
	Handler http.Handler
	Path    string
}

// NewMetricsPlugin creates a new metrics plugin instance
func NewMetricsPlugin(cfg MetricsConfig) (*MetricsPlugin, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("metrics plugin requires a handler")
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	return &MetricsPlugin{handler: cfg.Handler, path: cfg.Path}, nil
}

// Name returns the plugin identifier
func (p *MetricsPlugin) Name() string {
	return "metrics"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *MetricsPlugin) RegisterRoutes(app *fiber.App) {
	app.Get(p.path, adaptor.HTTPHandler(p.handler))
	slog.Info("Metrics endpoint registered", "path", p.path)
}

// Shutdown performs cleanup
func (p *MetricsPlugin) Shutdown() error {
	return nil
}

func init() {
	Register("metrics", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(MetricsConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for metrics plugin: expected MetricsConfig")
		}
		return NewMetricsPlugin(cfg)
	})
}
