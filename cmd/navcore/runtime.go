package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"navcore/internal/ahrs"
	"navcore/internal/config"
	"navcore/internal/fixmath"
	"navcore/internal/flightlog"
	"navcore/internal/fusion"
	"navcore/internal/gps"
	"navcore/internal/hilsim"
	"navcore/internal/led"
	"navcore/internal/sim"
	"navcore/internal/udp"
	"navcore/internal/web"
)

// runtime owns every component for one run. Optional pieces are nil when
// disabled or when they failed to come up.
type runtime struct {
	cfg   config.Config
	sched *fusion.Scheduler
	svc   *ahrs.Service

	hw       *ahrs.Hardware
	simSrc   *sim.Source
	gpsRecv  *gps.Receiver
	hilOut   *udp.Sender
	emitter  *hilsim.Emitter
	recorder *flightlog.Recorder
	ind      *led.Indicator
	states   *stateLogger
	logs     *web.LogBuffer
}

// sensorSet is what the heartbeat reads from.
type sensorSet struct {
	imu   ahrs.IMU
	mag   fusion.Magnetometer
	baro  fusion.Barometer
	fixes ahrs.FixSource
}

// newRuntime builds every enabled component. logs, when set, backs the
// web log tail.
func newRuntime(ctx context.Context, cfg config.Config, logs *web.LogBuffer) (*runtime, error) {
	opts, err := cfg.Fusion()
	if err != nil {
		return nil, err
	}
	r := &runtime{cfg: cfg, states: &stateLogger{}, logs: logs}

	sensors, err := r.openSensors(opts)
	if err != nil {
		return nil, err
	}

	// Optional: real GPS bring-up.
	if cfg.GPS.Enable {
		recv := gps.New(gps.Config{
			Enable:   cfg.GPS.Enable,
			Source:   cfg.GPS.Source,
			GPSDAddr: cfg.GPS.GPSDAddr,
			Device:   cfg.GPS.Device,
			Baud:     cfg.GPS.Baud,
		})
		if err := recv.Start(ctx); err != nil {
			// Keep running without position; attitude still works.
			log.Printf("gps init failed: %v", err)
		}
		r.gpsRecv = recv
		sensors.fixes = ahrs.ChanFixes(recv.Fixes())
	}

	if cfg.HIL.Enable {
		out, err := udp.Dial(cfg.HIL.Dest)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.hilOut = out
		r.emitter = &hilsim.Emitter{
			Variant: cfg.HILVariant(),
			Outputs: trimOutputs(cfg.HIL.Trim),
			Sink:    out,
		}
		log.Printf("hil dest=%s variant=%s outputs=%d", cfg.HIL.Dest, r.emitter.Variant, len(cfg.HIL.Trim))
	}

	fc := fusion.Config{
		Options:      opts,
		Magnetometer: sensors.mag,
		Barometer:    sensors.baro,
	}
	if r.gpsRecv != nil {
		fc.GPS = r.gpsRecv
	}
	if r.emitter != nil {
		fc.Sink = r.emitter
	}
	sched, err := fusion.New(fc)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.sched = sched

	observers := []ahrs.Observer{r.states}

	if cfg.FlightLog.Enable {
		rec := flightlog.New(cfg.FlightLog.Path, cfg.FlightLog.Every)
		if err := rec.Start(ctx, cfg.HeartbeatHz, cfg); err != nil {
			// A missing log is not a reason to stay on the ground.
			log.Printf("flightlog init failed: %v", err)
		} else {
			r.recorder = rec
			observers = append(observers, ahrs.ObserverFunc(rec.Record))
		}
	}

	if cfg.LED.Enable {
		ind, err := led.New(cfg.LED.Pin, cfg.HeartbeatHz)
		if err != nil {
			log.Printf("led init failed: %v", err)
		} else {
			r.ind = ind
			observers = append(observers, ahrs.ObserverFunc(func(s fusion.Snapshot) {
				_ = ind.Update(s.State, s.Tick)
			}))
		}
	}

	svc, err := ahrs.New(ahrs.Config{
		Scheduler: sched,
		IMU:       sensors.imu,
		Fixes:     sensors.fixes,
		Observers: observers,
		Realtime:  !cfg.Sim.Enable || cfg.Sim.Realtime,
		MaxTicks:  maxTicks(cfg),
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	r.svc = svc
	return r, nil
}

func (r *runtime) openSensors(opts fusion.Options) (sensorSet, error) {
	if r.cfg.Sim.Enable {
		sc := r.cfg.Sim
		src, err := sim.NewSource(sim.Circle{
			CenterLatDeg: sc.CenterLatDeg,
			CenterLonDeg: sc.CenterLonDeg,
			AltM:         sc.AltM,
			RadiusM:      sc.RadiusM,
			Period:       sc.Period,
			Hold:         sc.Hold,
			GyroOffset:   fixmath.Vector(sc.GyroOffset),
		}, opts.HeartbeatHz, time.Now().UTC())
		if err != nil {
			return sensorSet{}, err
		}
		r.simSrc = src
		log.Printf("sim enabled radius_m=%.0f period=%s hold=%s realtime=%t", sc.RadiusM, sc.Period, sc.Hold, sc.Realtime)
		return sensorSet{
			imu:   ahrs.IMUFunc(func() (fusion.IMUSample, error) { return src.NextIMU(), nil }),
			mag:   src,
			baro:  src,
			fixes: src,
		}, nil
	}

	hw, err := ahrs.OpenHardware(ahrs.HardwareConfig{
		Bus:      r.cfg.I2C.Bus,
		IMUAddr:  r.cfg.I2C.IMUAddr,
		MagAddr:  r.cfg.I2C.MagAddr,
		BaroAddr: r.cfg.I2C.BaroAddr,
		SampleHz: opts.HeartbeatHz,
		NeedMag:  opts.YawReference == fusion.YawMagnetometer,
		NeedBaro: opts.AltitudeSource == fusion.AltitudeBarometer,
	})
	if err != nil {
		return sensorSet{}, err
	}
	r.hw = hw
	return sensorSet{imu: hw, mag: hw.Mag, baro: hw.Baro}, nil
}

// trimOutputs holds every channel at its configured trim; the control
// laws that would move them live outside this program.
func trimOutputs(trim []uint16) func() []uint16 {
	out := append([]uint16(nil), trim...)
	return func() []uint16 { return out }
}

func maxTicks(cfg config.Config) uint64 {
	if !cfg.Sim.Enable || cfg.Sim.Duration <= 0 {
		return 0
	}
	return uint64(cfg.Sim.Duration * time.Duration(cfg.HeartbeatHz) / time.Second)
}

func (r *runtime) Start(ctx context.Context) error {
	if r.svc == nil {
		return fmt.Errorf("runtime not initialized")
	}
	if err := r.svc.Start(ctx); err != nil {
		return err
	}
	if r.cfg.Web.Enable {
		h := web.Handler(r.webStatus(), r.logs, r.svc)
		go func() {
			if err := web.Serve(ctx, r.cfg.Web.Listen, h); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
		log.Printf("web listen=%s", r.cfg.Web.Listen)
	}
	return nil
}

func (r *runtime) webStatus() *web.Status {
	src := web.Sources{AHRS: r.svc.Snapshot}
	if r.gpsRecv != nil {
		src.GPS = r.gpsRecv.Snapshot
	}
	if r.emitter != nil {
		src.HIL = r.emitter.Stats
	}
	if r.recorder != nil {
		src.FlightLog = r.recorder.Stats
	}
	if r.hw != nil {
		src.I2C = r.hw.BusStats
	}
	return web.NewStatus(src)
}

func (r *runtime) Done() <-chan struct{} {
	return r.svc.Done()
}

// Close stops the heartbeat first so nothing touches the outputs while
// they are torn down.
func (r *runtime) Close() {
	if r.svc != nil {
		r.svc.Close()
	}
	if r.gpsRecv != nil {
		r.gpsRecv.Close()
	}
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			log.Printf("flightlog close: %v", err)
		}
	}
	if r.ind != nil {
		_ = r.ind.Close()
	}
	if r.hilOut != nil {
		_ = r.hilOut.Close()
	}
	if r.hw != nil {
		_ = r.hw.Close()
	}
}

// stateLogger logs startup progress once per transition.
type stateLogger struct {
	last   fusion.State
	origin bool
}

func (l *stateLogger) Observe(s fusion.Snapshot) {
	if s.State != l.last {
		log.Printf("navcore state=%s tick=%d", s.State, s.Tick)
		l.last = s.State
	}
	if s.HasOrigin && !l.origin {
		log.Printf("navcore origin lat=%d lon=%d alt_cm=%d", s.Origin.Lat, s.Origin.Lon, s.Origin.Alt)
		l.origin = true
	}
}
