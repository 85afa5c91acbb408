package plugins

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Plugin is an optional HTTP surface mounted on the controller's fiber app
type Plugin interface {
	// Name returns the plugin identifier
	Name() string

	// RegisterRoutes adds the plugin's HTTP routes to the app
	RegisterRoutes(app *fiber.App)

	// Shutdown performs cleanup when the plugin is stopped
	Shutdown() error
}

// PluginFactory creates a new plugin instance
type PluginFactory func(config interface{}) (Plugin, error)

var registry = make(map[string]PluginFactory)

// Register adds a plugin factory to the registry
func Register(name string, factory PluginFactory) {
	registry[name] = factory
}

// Get retrieves a plugin factory by name
func Get(name string) (PluginFactory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// Load builds every named plugin with the config returned by configFor and mounts its
// routes on app. Unknown names are skipped with a warning.
func Load(app *fiber.App, names []string, configFor func(name string) interface{}) ([]Plugin, error) {
	var loaded []Plugin
	for _, name := range names {
		factory, exists := Get(name)
		if !exists {
			slog.Warn("Unknown plugin", "name", name)
			continue
		}
		plugin, err := factory(configFor(name))
		if err != nil {
			for _, p := range loaded {
				p.Shutdown()
			}
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
		plugin.RegisterRoutes(app)
		slog.Info("Plugin loaded", "name", plugin.Name())
		loaded = append(loaded, plugin)
	}
	return loaded, nil
}
