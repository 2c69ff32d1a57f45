package fusion

import "log"

const (
	// CalibCount is the init-step count (10 s at InitStepHz) at which the
	// zero-rate gyro offsets are captured.
	CalibCount = 400
	// GPSCount is the init-step count (25 s at InitStepHz) at which the
	// startup sequence finishes.
	GPSCount = 1000
	// InitStepHz is the rate the startup state machine advances at,
	// whatever the heartbeat rate.
	InitStepHz = 40
)

// State is the startup progression. It only ever moves forward.
type State int

const (
	Uncalibrated State = iota
	BiasCalibrating
	BiasDoneWaitingGPS
	Ready
)

func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case BiasCalibrating:
		return "bias_calibrating"
	case BiasDoneWaitingGPS:
		return "bias_done_waiting_gps"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// GPSStartup lets the positioning receiver run its own acquisition
// sequence. countdown runs from GPSCount-1 down to 0.
type GPSStartup interface {
	StartupSequence(countdown int)
}

// Calibration sequences bias capture and GPS lock waiting by init-step
// count. It is driven from the heartbeat only.
type Calibration struct {
	started        bool
	magSeen        bool
	calibFinished  bool
	initFinished   bool
	captured       bool
	recalRequested bool

	capture func()
	gps     GPSStartup

	Logf func(format string, args ...any)
}

// NewCalibration returns a state machine that calls capture to record
// offsets. gps may be nil.
func NewCalibration(capture func(), gps GPSStartup) *Calibration {
	return &Calibration{capture: capture, gps: gps, Logf: log.Printf}
}

// Reset clears every flag so the schedule runs again from step 0.
func (c *Calibration) Reset() {
	c.started = false
	c.magSeen = false
	c.calibFinished = false
	c.initFinished = false
	c.captured = false
	c.recalRequested = false
}

// Start marks the heartbeat as running.
func (c *Calibration) Start() {
	c.started = true
}

// Step advances the schedule to init-step count.
func (c *Calibration) Step(count int) {
	c.started = true
	if count == CalibCount {
		c.logf("calib_finished")
		c.calibFinished = true
		c.Calibrate()
	}
	if count <= GPSCount {
		if c.gps != nil {
			c.gps.StartupSequence(GPSCount - count)
		}
		if count == GPSCount {
			c.logf("init_finished")
			c.initFinished = true
		}
	}
}

// Calibrate records the zero-rate offsets. It does nothing before the
// calibration period has finished, and refuses to overwrite a capture
// unless RequestRecalibration was called since. It reports whether offsets
// were recorded.
func (c *Calibration) Calibrate() bool {
	if !c.calibFinished {
		return false
	}
	if c.captured && !c.recalRequested {
		return false
	}
	if c.capture != nil {
		c.capture()
	}
	c.captured = true
	c.recalRequested = false
	return true
}

// RequestRecalibration allows the next Calibrate to overwrite the
// offsets. The vehicle must be stationary; checking that is up to the
// operator. It reports false while the initial calibration is still
// running.
func (c *Calibration) RequestRecalibration() bool {
	if !c.calibFinished {
		return false
	}
	c.recalRequested = true
	return true
}

// MarkMagReading records that the magnetometer has delivered a reading.
func (c *Calibration) MarkMagReading() {
	c.magSeen = true
}

func (c *Calibration) FirstMagReading() bool { return c.magSeen }
func (c *Calibration) CalibFinished() bool   { return c.calibFinished }
func (c *Calibration) InitFinished() bool    { return c.initFinished }
func (c *Calibration) RecalPending() bool    { return c.recalRequested }

func (c *Calibration) State() State {
	switch {
	case c.initFinished:
		return Ready
	case c.calibFinished:
		return BiasDoneWaitingGPS
	case c.started:
		return BiasCalibrating
	default:
		return Uncalibrated
	}
}

func (c *Calibration) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}
