package hardware

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Names of the output lines the controller drives.
const (
	LineLNA1     = "lna1"
	LineLNA2     = "lna2"
	LineLED1     = "led1"
	LineLED2     = "led2"
	LineAtten1LE = "atten1_le"
	LineAtten2LE = "atten2_le"
)

// LineConfig requests one output line.
type LineConfig struct {
	Name    string
	Offset  int
	Initial int
}

// Lines owns the output lines requested from one GPIO chip.
type Lines struct {
	chip     *gpiocdev.Chip
	chipPath string
	lines    map[string]*gpiocdev.Line
	order    []string
}

// OpenLines opens chipPath and requests every line in cfg as an output at its initial
// level. Either all lines are requested or none are.
func OpenLines(chipPath string, cfg []LineConfig) (*Lines, error) {
	chip, err := gpiocdev.NewChip(chipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPIO chip %s: %w", chipPath, err)
	}

	l := &Lines{
		chip:     chip,
		chipPath: chipPath,
		lines:    make(map[string]*gpiocdev.Line, len(cfg)),
	}
	for _, c := range cfg {
		if _, dup := l.lines[c.Name]; dup {
			l.Close()
			return nil, fmt.Errorf("line %q requested twice", c.Name)
		}
		line, err := chip.RequestLine(
			c.Offset,
			gpiocdev.AsOutput(c.Initial),
			gpiocdev.WithConsumer("fem-"+c.Name),
		)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to request %s pin %d: %w", c.Name, c.Offset, err)
		}
		l.lines[c.Name] = line
		l.order = append(l.order, c.Name)
	}
	return l, nil
}

// Line returns the named line, or nil if it was not requested.
func (l *Lines) Line(name string) *gpiocdev.Line {
	return l.lines[name]
}

// Close releases all GPIO resources
func (l *Lines) Close() error {
	var errs []error

	for i := len(l.order) - 1; i >= 0; i-- {
		name := l.order[i]
		if err := l.lines[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s line: %w", name, err))
		}
		delete(l.lines, name)
	}
	l.order = nil

	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO chip: %w", err))
		}
		l.chip = nil
	}
	return errors.Join(errs...)
}

// Info describes the chip and the requested lines.
func (l *Lines) Info() string {
	if l.chip == nil {
		return fmt.Sprintf("GPIO: %s (closed)", l.chipPath)
	}
	return fmt.Sprintf("GPIO: %s (%s, %s), lines: %v", l.chipPath, l.chip.Name, l.chip.Label, l.order)
}
