package hardware

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultPWMRoot is where the kernel exposes PWM chips.
const DefaultPWMRoot = "/sys/class/pwm"

// CalTone is a calibration tone generator: a PWM channel fixed at 50% duty that can only
// be switched on and off.
type CalTone struct {
	dir string
}

// OpenCalTone exports channel of pwmchip<chip> under root if needed and programs a 50%
// duty cycle at period. The output is left disabled.
func OpenCalTone(root string, chip, channel int, period time.Duration) (*CalTone, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid PWM period %s", period)
	}
	chipDir := filepath.Join(root, fmt.Sprintf("pwmchip%d", chip))
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := writeAttr(filepath.Join(chipDir, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export PWM channel %d: %w", channel, err)
		}
		// export is asynchronous on some kernels
		for i := 0; i < 50; i++ {
			if _, err := os.Stat(dir); err == nil {
				break
			}
			time.Sleep(2 * time.Millisecond)
		}
	}

	t := &CalTone{dir: dir}
	if err := t.Enable(false); err != nil {
		return nil, err
	}
	ns := period.Nanoseconds()
	if err := writeAttr(filepath.Join(dir, "period"), strconv.FormatInt(ns, 10)); err != nil {
		return nil, fmt.Errorf("set PWM period: %w", err)
	}
	if err := writeAttr(filepath.Join(dir, "duty_cycle"), strconv.FormatInt(ns/2, 10)); err != nil {
		return nil, fmt.Errorf("set PWM duty cycle: %w", err)
	}
	return t, nil
}

// Enable switches the tone on or off.
func (t *CalTone) Enable(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	if err := writeAttr(filepath.Join(t.dir, "enable"), v); err != nil {
		return fmt.Errorf("set PWM enable=%s: %w", v, err)
	}
	return nil
}

func (t *CalTone) String() string {
	return t.dir
}

func writeAttr(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
