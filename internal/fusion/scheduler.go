package fusion

import (
	"fmt"
	"log"

	"navcore/internal/dcm"
	"navcore/internal/fixmath"
	"navcore/internal/navref"
)

// MinCourseSpeed is the ground speed (cm/s) below which GPS course is too
// noisy to correct heading with.
const MinCourseSpeed = 300

// IMUSample is one high-rate reading in the sensor frame. Gyro is Q12
// rad/s, Accel any consistent scale with up positive at rest.
type IMUSample struct {
	Gyro  fixmath.Vector
	Accel fixmath.Vector
}

// BaroReading is temperature in 0.01 °C and pressure in Pa/256.
type BaroReading struct {
	CentiC     int32
	PressureQ8 uint32
}

// Magnetometer starts an acquisition and calls done once a reading is
// available. done may run before Read returns, or on a later call.
type Magnetometer interface {
	Read(done func(fixmath.Vector)) error
}

// Barometer needs several Poll calls per reading; done is called when a
// reading completes.
type Barometer interface {
	Poll(done func(BaroReading)) error
}

// FrameSink receives one HIL emission per heartbeat.
type FrameSink interface {
	Emit() error
}

// Fix is a GPS position report in receiver units.
type Fix struct {
	Lon, Lat int32 // 1e-7 degrees
	AltCm    int32
	// Course is byte-circular, clockwise from north.
	Course   uint8
	SpeedCmS int32
	Valid    bool
}

type Config struct {
	Options

	Estimator    *dcm.Estimator
	Reference    *navref.Reference
	Magnetometer Magnetometer
	Barometer    Barometer
	GPS          GPSStartup
	Sink         FrameSink

	Logf func(format string, args ...any)
}

// Snapshot is a copy of the estimate after the most recent tick.
type Snapshot struct {
	Tick  uint64
	State State

	FirstMagReading bool
	CalibFinished   bool
	InitFinished    bool

	Matrix  dcm.Matrix
	Offsets fixmath.Vector
	Bias    fixmath.Vector
	Roll    int8
	Pitch   int8
	Heading uint8

	HasOrigin     bool
	Origin        navref.Origin
	Position      navref.Relative32
	PositionValid bool

	BaroAltCm    int32
	BaroAltValid bool

	// Corrections counts applied drift corrections by dcm.Source.
	Corrections [3]uint64
	Errors      uint64
	LastError   string
}

// Scheduler is the heartbeat entry point. Every method must be called from
// the heartbeat goroutine.
type Scheduler struct {
	opts Options
	est  *dcm.Estimator
	ref  *navref.Reference
	cal  *Calibration

	mag  Magnetometer
	baro Barometer
	sink FrameSink
	logf func(format string, args ...any)

	counter uint64
	dt      uint32

	accumulate bool
	gyroSum    [3]int64
	gyroN      int64

	i2cToggle  bool
	i2cCounter int

	magPending bool
	magVec     fixmath.Vector
	fixPending bool
	fix        Fix

	originReset   bool
	position      navref.Relative32
	positionValid bool

	pressure       uint32
	havePressure   bool
	groundPressure uint32
	haveGround     bool
	baroAltCm      int32
	baroValid      bool

	corrections [3]uint64
	errors      uint64
	lastErr     string
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.HeartbeatHz == 0 {
		cfg.HeartbeatHz = DefaultHeartbeatHz
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if cfg.Estimator == nil {
		cfg.Estimator = dcm.New()
	}
	if cfg.Reference == nil {
		cfg.Reference = navref.New()
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	s := &Scheduler{
		opts:       cfg.Options,
		est:        cfg.Estimator,
		ref:        cfg.Reference,
		mag:        cfg.Magnetometer,
		baro:       cfg.Barometer,
		sink:       cfg.Sink,
		logf:       cfg.Logf,
		dt:         uint32(65536 / cfg.HeartbeatHz),
		accumulate: true,
	}
	s.cal = NewCalibration(s.captureOffsets, cfg.GPS)
	s.cal.Logf = cfg.Logf
	return s, nil
}

func (s *Scheduler) Options() Options             { return s.opts }
func (s *Scheduler) Estimator() *dcm.Estimator    { return s.est }
func (s *Scheduler) Reference() *navref.Reference { return s.ref }
func (s *Scheduler) Calibration() *Calibration    { return s.cal }
func (s *Scheduler) Counter() uint64              { return s.counter }
func (s *Scheduler) State() State                 { return s.cal.State() }

// Tick runs one heartbeat: slow-sensor poll, attitude step once
// calibrated, startup state machine, then HIL emission.
func (s *Scheduler) Tick(imu IMUSample) {
	s.counter++
	s.cal.Start()

	gyro := s.opts.Orientation.Apply(imu.Gyro)
	accel := s.opts.Orientation.Apply(imu.Accel)
	if s.accumulate {
		for i := range gyro {
			s.gyroSum[i] += int64(gyro[i])
		}
		s.gyroN++
	}

	s.poll()

	if s.cal.CalibFinished() {
		s.est.Integrate(gyro, s.dt)
		s.correct(accel)
	}

	div := uint64(s.opts.HeartbeatHz / InitStepHz)
	if !s.cal.InitFinished() && s.counter%div == 0 {
		s.cal.Step(int(s.counter / div))
	}

	if s.opts.HIL && s.sink != nil {
		if err := s.sink.Emit(); err != nil {
			s.fail("hil", err)
		}
	}
}

func (s *Scheduler) poll() {
	if s.opts.AltitudeSource == AltitudeBarometer {
		if s.counter%uint64(s.opts.HeartbeatHz/InitStepHz) == 0 {
			s.pollI2C()
		}
		return
	}
	if s.opts.YawReference == YawMagnetometer && s.counter%uint64(s.opts.HeartbeatHz/4) == 0 {
		s.readMag()
	}
}

// pollI2C shares the 40 Hz slot between the sensors: eight barometer
// calls, one idle slot, then one magnetometer read, i.e. both at 4 Hz.
func (s *Scheduler) pollI2C() {
	prev := s.i2cCounter
	s.i2cCounter++
	if s.i2cToggle {
		if prev > 0 {
			if s.opts.YawReference == YawMagnetometer {
				s.readMag()
			}
			s.i2cCounter = 0
			s.i2cToggle = false
		}
		return
	}
	s.pollBaro()
	if prev > 6 {
		s.i2cCounter = 0
		s.i2cToggle = true
	}
}

func (s *Scheduler) readMag() {
	if s.mag == nil {
		return
	}
	if err := s.mag.Read(s.OnMagnetometer); err != nil {
		s.fail("mag", err)
	}
}

func (s *Scheduler) pollBaro() {
	if s.baro == nil {
		return
	}
	if err := s.baro.Poll(s.OnBarometer); err != nil {
		s.fail("baro", err)
	}
}

// OnMagnetometer accepts a sensor-frame magnetometer reading.
func (s *Scheduler) OnMagnetometer(v fixmath.Vector) {
	s.cal.MarkMagReading()
	s.magVec = s.opts.Orientation.Apply(v)
	s.magPending = true
}

// OnBarometer accepts a completed barometer reading. Altitude is reported
// relative to the pressure at bias capture.
func (s *Scheduler) OnBarometer(r BaroReading) {
	if r.PressureQ8 == 0 {
		s.fail("baro", fmt.Errorf("pressure reading is zero"))
		return
	}
	s.pressure = r.PressureQ8
	s.havePressure = true
	if !s.cal.CalibFinished() {
		return
	}
	if !s.haveGround {
		s.groundPressure = r.PressureQ8
		s.haveGround = true
	}
	s.baroAltCm = pressureToAltitudeCm(r.PressureQ8) - pressureToAltitudeCm(s.groundPressure)
	s.baroValid = true
}

// DeliverFix accepts a GPS fix. The first valid fix after startup
// finishes defines the origin.
func (s *Scheduler) DeliverFix(f Fix) {
	if !f.Valid {
		return
	}
	s.fix = f
	s.fixPending = true

	if s.cal.InitFinished() && (!s.ref.HasOrigin() || s.originReset) {
		o := s.ref.SetOrigin(f.Lon, f.Lat, f.AltCm)
		s.originReset = false
		s.logf("origin set lat=%d lon=%d alt_cm=%d cos_lat=%d", o.Lat, o.Lon, o.Alt, o.CosLat)
	}
	if !s.ref.HasOrigin() {
		return
	}
	s.position = s.ref.ToRelative32(navref.Waypoint{X: f.Lon, Y: f.Lat, Z: f.AltCm / 100})
	if s.opts.AltitudeSource == AltitudeBarometer && s.baroValid {
		s.position.Z = (s.ref.Origin().Alt + s.baroAltCm) / 100
	}
	s.positionValid = true
}

// Initialize puts the estimator back to the reference orientation and
// restarts the startup schedule: offsets are averaged and captured again,
// and the GPS startup sequence reruns. The local origin is kept.
func (s *Scheduler) Initialize() {
	s.est.Initialize()
	s.cal.Reset()
	s.counter = 0
	s.accumulate = true
	s.gyroSum = [3]int64{}
	s.gyroN = 0
	s.i2cToggle = false
	s.i2cCounter = 0
	s.magPending = false
	s.haveGround = false
	s.baroValid = false
	s.baroAltCm = 0
}

// ResetOrigin makes the next valid fix redefine the local frame.
func (s *Scheduler) ResetOrigin() {
	s.originReset = true
}

// RequestRecalibration restarts gyro averaging so a following CaptureBias
// may replace the offsets. The vehicle must be stationary.
func (s *Scheduler) RequestRecalibration() bool {
	if !s.cal.RequestRecalibration() {
		return false
	}
	s.gyroSum = [3]int64{}
	s.gyroN = 0
	s.accumulate = true
	return true
}

// CaptureBias is the guarded offset capture. It reports whether new
// offsets were recorded.
func (s *Scheduler) CaptureBias() bool {
	if s.cal.RecalPending() && s.gyroN == 0 {
		return false
	}
	return s.cal.Calibrate()
}

func (s *Scheduler) captureOffsets() {
	if s.gyroN > 0 {
		var off fixmath.Vector
		for i := range off {
			off[i] = fixmath.Sat16L(s.gyroSum[i] / s.gyroN)
		}
		s.est.RecordOffsets(off)
		s.logf("gyro offsets captured x=%d y=%d z=%d samples=%d", off[0], off[1], off[2], s.gyroN)
	}
	s.accumulate = false
	s.gyroSum = [3]int64{}
	s.gyroN = 0
	if s.havePressure {
		s.groundPressure = s.pressure
		s.haveGround = true
	}
}

func (s *Scheduler) correct(accel fixmath.Vector) {
	s.apply(dcm.Reference{Source: dcm.Gravity, Vector: accel, Valid: true})

	switch s.opts.YawReference {
	case YawMagnetometer:
		if s.magPending {
			s.magPending = false
			s.apply(dcm.Reference{Source: dcm.Magnetic, Vector: s.magVec, Valid: s.cal.FirstMagReading()})
		}
	case YawGPSCourse:
		if s.fixPending {
			s.fixPending = false
			s.apply(dcm.Reference{
				Source: dcm.GPSCourse,
				Vector: dcm.CourseVector(s.fix.Course, fixmath.RMAX),
				Valid:  s.fix.Valid && s.fix.SpeedCmS >= MinCourseSpeed,
			})
		}
	}
}

func (s *Scheduler) apply(ref dcm.Reference) {
	if s.est.ApplyDriftCorrection(ref) {
		s.corrections[ref.Source]++
	}
}

func (s *Scheduler) fail(op string, err error) {
	s.errors++
	s.lastErr = op + ": " + err.Error()
}

func (s *Scheduler) Snapshot() Snapshot {
	m := s.est.Matrix()
	roll, pitch, heading := m.Euler()
	snap := Snapshot{
		Tick:            s.counter,
		State:           s.cal.State(),
		FirstMagReading: s.cal.FirstMagReading(),
		CalibFinished:   s.cal.CalibFinished(),
		InitFinished:    s.cal.InitFinished(),
		Matrix:          m,
		Offsets:         s.est.Offsets(),
		Bias:            s.est.Bias(),
		Roll:            roll,
		Pitch:           pitch,
		Heading:         heading,
		HasOrigin:       s.ref.HasOrigin(),
		Position:        s.position,
		PositionValid:   s.positionValid,
		BaroAltCm:       s.baroAltCm,
		BaroAltValid:    s.baroValid,
		Corrections:     s.corrections,
		Errors:          s.errors,
		LastError:       s.lastErr,
	}
	if snap.HasOrigin {
		snap.Origin = s.ref.Origin()
	}
	return snap
}
