//go:build linux && (arm || arm64)

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "navcore-status"

// openLine claims BCM pin as an output, low. The line is looked up by its
// "GPIOn" name on any chip; kernels that leave header lines unnamed fall
// back to offset pin on gpiochip0.
func openLine(pin int) (line, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("led: invalid gpio pin %d", pin)
	}
	name := fmt.Sprintf("GPIO%d", pin)

	chip, offset, err := gpiocdev.FindLine(name)
	if err != nil {
		chip, offset = "gpiochip0", pin
	}
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("led: request %s (%s:%d): %w", name, chip, offset, err)
	}
	return &cdevLine{l: l}, nil
}

type cdevLine struct {
	l *gpiocdev.Line
}

func (c *cdevLine) SetValue(v int) error {
	return c.l.SetValue(v)
}

// Close leaves the light off.
func (c *cdevLine) Close() error {
	_ = c.l.SetValue(0)
	return c.l.Close()
}
