// Package status drives the two "IF power good" indicators from the background context.
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/linht/fem-controller/device"
	"github.com/linht/fem-controller/observability"
)

// DefaultPace is the pause between passes of the loop.
const DefaultPace = 50 * time.Millisecond

// LED is a status output. go-gpiocdev's *Line satisfies it.
type LED interface {
	SetValue(value int) error
}

// Loop compares the IF detector readings with the power good threshold and lights an
// LED per channel at or above it.
type Loop struct {
	arb     *device.Arbiter
	leds    [2]LED
	lit     [2]int
	pace    time.Duration
	log     *slog.Logger
	metrics *observability.FEMCollector
}

// NewLoop returns a loop driving led1 and led2. A non-positive pace selects DefaultPace.
func NewLoop(arb *device.Arbiter, led1, led2 LED, pace time.Duration, log *slog.Logger, metrics *observability.FEMCollector) *Loop {
	if pace <= 0 {
		pace = DefaultPace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		arb:     arb,
		leds:    [2]LED{led1, led2},
		lit:     [2]int{-1, -1},
		pace:    pace,
		log:     log,
		metrics: metrics,
	}
}

// Step runs one pass. It reports false when the command path held or was waiting for the
// shared resources and the pass was skipped.
func (l *Loop) Step() bool {
	var power [2]float32
	var threshold float32
	ran := l.arb.TryBackground(func(r *device.Resources) {
		threshold = r.State.IfGoodThreshold
		cached := [2]float32{r.State.LastMonitor.IF1Power, r.State.LastMonitor.IF2Power}
		for i, ch := range []device.Channel{device.IF1, device.IF2} {
			v, err := r.IFPower(ch)
			if err != nil {
				l.log.Debug("IF read failed, using cached value", "channel", ch, "error", err)
				l.metrics.PeripheralError("adc")
				v = cached[i]
			}
			power[i] = v
		}
	})
	if !ran {
		return false
	}

	for i := range power {
		good := power[i] >= threshold
		l.metrics.SetIFGood(i+1, good)
		value := 0
		if good {
			value = 1
		}
		if value == l.lit[i] || l.leds[i] == nil {
			continue
		}
		if err := l.leds[i].SetValue(value); err != nil {
			l.log.Error("Failed to drive status LED", "channel", i+1, "error", err)
			l.metrics.PeripheralError("gpio")
			continue
		}
		l.lit[i] = value
	}
	return true
}

// Run steps until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.pace)
	defer ticker.Stop()
	for {
		l.Step()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
