// Package ahrs runs the attitude heartbeat on the host: it paces
// fusion.Scheduler.Tick, feeds it IMU samples and GPS fixes, services
// operator requests and publishes snapshots for other goroutines.
package ahrs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"navcore/internal/fusion"
	"navcore/internal/gps"
)

// IMU returns one sample per heartbeat.
type IMU interface {
	Read() (fusion.IMUSample, error)
}

// IMUFunc adapts a function to IMU.
type IMUFunc func() (fusion.IMUSample, error)

func (f IMUFunc) Read() (fusion.IMUSample, error) { return f() }

// FixSource hands over GPS fixes without blocking.
type FixSource interface {
	NextFix() (gps.Fix, bool)
}

// Observer sees every snapshot on the heartbeat goroutine. It must not
// block.
type Observer interface {
	Observe(fusion.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(fusion.Snapshot)

func (f ObserverFunc) Observe(s fusion.Snapshot) { f(s) }

// ChanFixes drains a receiver channel.
func ChanFixes(ch <-chan gps.Fix) FixSource {
	return chanFixes(ch)
}

type chanFixes <-chan gps.Fix

func (c chanFixes) NextFix() (gps.Fix, bool) {
	select {
	case f, ok := <-c:
		return f, ok
	default:
		return gps.Fix{}, false
	}
}

// maxFixesPerTick bounds how long a burst of queued fixes can hold up a
// heartbeat.
const maxFixesPerTick = 4

type Config struct {
	Scheduler *fusion.Scheduler
	IMU       IMU
	Fixes     FixSource
	Observers []Observer

	// Realtime paces ticks with a ticker at the heartbeat rate; otherwise
	// ticks run back to back, which only makes sense with simulated
	// sensors.
	Realtime bool
	// MaxTicks stops the loop after that many heartbeats; 0 runs until
	// the context is done.
	MaxTicks uint64
	// RecalDuration is how long gyro offsets are averaged on a
	// recalibration request.
	RecalDuration time.Duration
}

type Snapshot struct {
	fusion.Snapshot

	Running   bool
	IMUErrors uint64
	Fixes     uint64
	Overruns  uint64
	// IMULastError is the most recent failed IMU read.
	IMULastError string
	UpdatedAt    time.Time
}

type recalReq struct {
	done      chan error
	remaining int
}

type Service struct {
	cfg    Config
	sched  *fusion.Scheduler
	hz     int
	period time.Duration

	recalCh  chan chan error
	originCh chan struct{}

	mu   sync.RWMutex
	snap Snapshot

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(cfg Config) (*Service, error) {
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("ahrs: scheduler is nil")
	}
	if cfg.IMU == nil {
		return nil, fmt.Errorf("ahrs: imu is nil")
	}
	if cfg.RecalDuration <= 0 {
		cfg.RecalDuration = 2 * time.Second
	}
	hz := cfg.Scheduler.Options().HeartbeatHz
	return &Service{
		cfg:      cfg,
		sched:    cfg.Scheduler,
		hz:       hz,
		period:   time.Second / time.Duration(hz),
		recalCh:  make(chan chan error, 1),
		originCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start launches the heartbeat goroutine. It is the only goroutine that
// touches the scheduler afterwards.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ahrs: ctx is nil")
	}
	started := false
	s.startOnce.Do(func() {
		started = true
		s.mu.Lock()
		s.snap.Running = true
		s.mu.Unlock()
		go s.run(ctx)
	})
	if !started {
		return fmt.Errorf("ahrs: already started")
	}
	return nil
}

// Done is closed when the heartbeat loop exits.
func (s *Service) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	// A service that never started has no loop to close doneCh.
	s.startOnce.Do(func() {
		close(s.doneCh)
	})
	<-s.doneCh
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Recalibrate re-averages the gyro zero-rate offsets over RecalDuration
// and replaces them. The vehicle must be stationary for the whole window.
func (s *Service) Recalibrate(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("ahrs: service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ahrs: ctx is nil")
	}

	done := make(chan error, 1)
	select {
	case s.recalCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ahrs: recalibration already in progress")
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return fmt.Errorf("ahrs: stopped")
	}
}

// ResetOrigin makes the next valid fix redefine the local frame. Repeated
// requests before the heartbeat picks one up collapse into one.
func (s *Service) ResetOrigin() {
	if s == nil {
		return
	}
	select {
	case s.originCh <- struct{}{}:
	default:
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)
	defer func() {
		s.mu.Lock()
		s.snap.Running = false
		s.mu.Unlock()
	}()

	var tick <-chan time.Time
	if s.cfg.Realtime {
		t := time.NewTicker(s.period)
		defer t.Stop()
		tick = t.C
	}

	var (
		recal     *recalReq
		imuErrors uint64
		fixes     uint64
		overruns  uint64
		lastErr   string
		last      fusion.IMUSample
	)

	finish := func(err error) {
		if recal != nil {
			recal.done <- err
			recal = nil
		}
	}
	defer func() { finish(fmt.Errorf("ahrs: stopped")) }()

	for {
		if s.cfg.Realtime {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case done := <-s.recalCh:
				recal = s.beginRecal(recal, done)
				continue
			case <-tick:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case done := <-s.recalCh:
				recal = s.beginRecal(recal, done)
			default:
			}
		}

		select {
		case <-s.originCh:
			s.sched.ResetOrigin()
			log.Printf("ahrs origin reset requested")
		default:
		}

		start := time.Now()

		// A failed read holds the last good sample so the heartbeat keeps
		// its rate.
		sample, err := s.cfg.IMU.Read()
		if err != nil {
			imuErrors++
			lastErr = "imu: " + err.Error()
			sample = last
		} else {
			last = sample
		}

		s.sched.Tick(sample)

		// Fixes that arrived during this tick are seen by the next one.
		if s.cfg.Fixes != nil {
			for i := 0; i < maxFixesPerTick; i++ {
				f, ok := s.cfg.Fixes.NextFix()
				if !ok {
					break
				}
				fixes++
				s.sched.DeliverFix(f.Fusion())
			}
		}

		if recal != nil {
			recal.remaining--
			if recal.remaining <= 0 {
				if s.sched.CaptureBias() {
					log.Printf("ahrs recalibration done offsets=%v", s.sched.Estimator().Offsets())
					finish(nil)
				} else {
					finish(fmt.Errorf("ahrs: offset capture rejected"))
				}
			}
		}

		snap := s.sched.Snapshot()
		for _, o := range s.cfg.Observers {
			o.Observe(snap)
		}

		if s.cfg.Realtime && time.Since(start) > s.period {
			overruns++
		}

		s.mu.Lock()
		s.snap = Snapshot{
			Snapshot:     snap,
			Running:      true,
			IMUErrors:    imuErrors,
			Fixes:        fixes,
			Overruns:     overruns,
			IMULastError: lastErr,
			UpdatedAt:    time.Now().UTC(),
		}
		s.mu.Unlock()

		if s.cfg.MaxTicks > 0 && snap.Tick >= s.cfg.MaxTicks {
			return
		}
	}
}

func (s *Service) beginRecal(cur *recalReq, done chan error) *recalReq {
	if cur != nil {
		done <- fmt.Errorf("ahrs: recalibration already in progress")
		return cur
	}
	if !s.sched.RequestRecalibration() {
		done <- fmt.Errorf("ahrs: initial calibration still running")
		return nil
	}
	n := int(s.cfg.RecalDuration / s.period)
	if n < 1 {
		n = 1
	}
	log.Printf("ahrs recalibration started ticks=%d", n)
	return &recalReq{done: done, remaining: n}
}
