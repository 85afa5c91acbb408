package plugins

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"
)

// orderedObject marshals to a JSON object with keys in file order
type orderedObject struct {
	keys   []string
	values map[string]interface{}
}

func (o *orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// nodeToJSON converts a parsed YAML document into values encoding/json can marshal,
// keeping mapping order.
func nodeToJSON(n *yaml.Node) interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return nodeToJSON(n.Content[0])
	case yaml.MappingNode:
		obj := &orderedObject{values: make(map[string]interface{}, len(n.Content)/2)}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			obj.keys = append(obj.keys, k)
			obj.values[k] = nodeToJSON(n.Content[i+1])
		}
		return obj
	case yaml.SequenceNode:
		items := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			items = append(items, nodeToJSON(c))
		}
		return items
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil
		}
		return nodeToJSON(n.Alias)
	}

	switch n.Tag {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if n.Decode(&b) == nil {
			return b
		}
	case "!!int":
		var i int64
		if n.Decode(&i) == nil {
			return i
		}
	case "!!float":
		var f float64
		if n.Decode(&f) == nil {
			return f
		}
	}
	return n.Value
}

// mergeNode writes values onto the keys that already exist in n. Keys unknown to the
// file are ignored so edits cannot grow the document; comments survive untouched.
func mergeNode(n *yaml.Node, values map[string]interface{}) {
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) > 0 {
			mergeNode(n.Content[0], values)
		}
		return
	}
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		v, ok := values[n.Content[i].Value]
		if !ok {
			continue
		}
		target := n.Content[i+1]
		switch v := v.(type) {
		case map[string]interface{}:
			mergeNode(target, v)
		case []interface{}:
			target.Kind = yaml.SequenceNode
			target.Tag = "!!seq"
			target.Content = target.Content[:0]
			for _, item := range v {
				s := &yaml.Node{Kind: yaml.ScalarNode}
				setScalar(s, item)
				target.Content = append(target.Content, s)
			}
		default:
			setScalar(target, v)
		}
	}
}

// setScalar stores a JSON scalar in n with the matching YAML tag. Whole floats are
// written as ints since JSON does not distinguish them.
func setScalar(n *yaml.Node, v interface{}) {
	n.Kind = yaml.ScalarNode
	n.Style = 0
	switch v := v.(type) {
	case nil:
		n.Tag, n.Value = "!!null", "null"
	case bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			n.Tag, n.Value = "!!int", strconv.FormatInt(int64(v), 10)
		} else {
			n.Tag, n.Value = "!!float", strconv.FormatFloat(v, 'g', -1, 64)
		}
	case string:
		n.Tag, n.Value = "!!str", v
		if _, err := strconv.ParseFloat(v, 64); err == nil || v == "true" || v == "false" || v == "" {
			n.Style = yaml.DoubleQuotedStyle
		}
	default:
		n.Tag, n.Value = "", fmt.Sprint(v)
	}
}

// SettingsPlugin lets the controller's configuration file be viewed and edited over HTTP.
// Saved changes take effect at the next start.
type SettingsPlugin struct {
	path     string
	validate func([]byte) error
	mu       sync.Mutex
}

// SettingsConfig holds the settings plugin configuration
type SettingsConfig struct {
	Path string
	// Validate rejects a document the controller could not start with
	Validate func([]byte) error
}

// NewSettingsPlugin creates a new settings plugin instance
func NewSettingsPlugin(cfg SettingsConfig) (*SettingsPlugin, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("settings plugin requires the configuration path")
	}
	return &SettingsPlugin{path: cfg.Path, validate: cfg.Validate}, nil
}

// Name returns the plugin identifier
func (p *SettingsPlugin) Name() string {
	return "settings"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *SettingsPlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/settings")
	api.Get("/", p.load)
	api.Put("/", p.save)
}

// Shutdown performs cleanup
func (p *SettingsPlugin) Shutdown() error {
	return nil
}

func (p *SettingsPlugin) readDocument() (*yaml.Node, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return &doc, nil
}

// load handles GET /api/settings
func (p *SettingsPlugin) load(c *fiber.Ctx) error {
	p.mu.Lock()
	doc, err := p.readDocument()
	p.mu.Unlock()
	if err != nil {
		return SendError(c, fiber.StatusInternalServerError, err)
	}
	return SendSuccess(c, nodeToJSON(doc), "Settings loaded")
}

// save handles PUT /api/settings
func (p *SettingsPlugin) save(c *fiber.Ctx) error {
	var values map[string]interface{}
	if err := json.Unmarshal(c.Body(), &values); err != nil || values == nil {
		return SendErrorMessage(c, fiber.StatusBadRequest, "Request body must be a JSON object")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.readDocument()
	if err != nil {
		return SendError(c, fiber.StatusInternalServerError, err)
	}
	mergeNode(doc, values)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return SendError(c, fiber.StatusInternalServerError, fmt.Errorf("failed to serialize settings: %w", err))
	}
	if p.validate != nil {
		if err := p.validate(data); err != nil {
			return SendError(c, fiber.StatusBadRequest, fmt.Errorf("invalid settings: %w", err))
		}
	}
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return SendError(c, fiber.StatusInternalServerError, fmt.Errorf("failed to write settings file: %w", err))
	}
	return SendSuccess(c, nodeToJSON(doc), "Settings saved, restart to apply")
}

func init() {
	Register("settings", func(config interface{}) (Plugin, error) {
		cfg, ok := config.(SettingsConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config for settings plugin: expected SettingsConfig")
		}
		return NewSettingsPlugin(cfg)
	})
}
