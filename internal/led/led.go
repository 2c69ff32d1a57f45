// Package led shows the startup state on a GPIO status light: off before
// the heartbeat runs, fast blink while gyro offsets are averaged, slow
// blink while waiting for GPS, solid once ready.
package led

import (
	"fmt"

	"navcore/internal/fusion"
)

type line interface {
	SetValue(v int) error
	Close() error
}

var openLineFn = openLine

// Blink rates in Hz.
const (
	calibratingBlinkHz = 4
	waitingBlinkHz     = 1
)

// Indicator drives the light from the heartbeat. Only level changes are
// written to the line.
type Indicator struct {
	line        line
	heartbeatHz int

	lit    bool
	primed bool
	errs   uint64
}

func New(pin, heartbeatHz int) (*Indicator, error) {
	if heartbeatHz <= 0 {
		return nil, fmt.Errorf("led: heartbeat %d Hz invalid", heartbeatHz)
	}
	l, err := openLineFn(pin)
	if err != nil {
		return nil, err
	}
	return &Indicator{line: l, heartbeatHz: heartbeatHz}, nil
}

// Level returns whether the light is on at tick for state.
func Level(state fusion.State, tick uint64, heartbeatHz int) bool {
	switch state {
	case fusion.Ready:
		return true
	case fusion.BiasCalibrating:
		return blink(tick, heartbeatHz, calibratingBlinkHz)
	case fusion.BiasDoneWaitingGPS:
		return blink(tick, heartbeatHz, waitingBlinkHz)
	default:
		return false
	}
}

func blink(tick uint64, heartbeatHz, rateHz int) bool {
	period := uint64(heartbeatHz / rateHz)
	if period < 2 {
		period = 2
	}
	return tick%period < period/2
}

// Update sets the light for the current tick. It reports write errors.
func (ind *Indicator) Update(state fusion.State, tick uint64) error {
	if ind == nil || ind.line == nil {
		return nil
	}
	on := Level(state, tick, ind.heartbeatHz)
	if ind.primed && on == ind.lit {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	if err := ind.line.SetValue(v); err != nil {
		ind.errs++
		return fmt.Errorf("led: set value: %w", err)
	}
	ind.lit = on
	ind.primed = true
	return nil
}

func (ind *Indicator) Errors() uint64 {
	if ind == nil {
		return 0
	}
	return ind.errs
}

func (ind *Indicator) Close() error {
	if ind == nil || ind.line == nil {
		return nil
	}
	err := ind.line.Close()
	ind.line = nil
	return err
}
