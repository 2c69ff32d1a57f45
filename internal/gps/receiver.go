package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls the receiver.
//
// Device may be empty to auto-detect /dev/ttyACM* then /dev/ttyUSB*.
// Source is "nmea" (direct serial, default) or "gpsd".
type Config struct {
	Enable bool

	Source   string
	GPSDAddr string

	Device string
	Baud   int
}

type Snapshot struct {
	Enabled     bool
	Source      string
	Device      string
	Baud        int
	Fix         Fix
	Fixes       uint64
	Dropped     uint64
	StartupDone bool
	LastError   string
}

// Receiver publishes fixes on a channel for the heartbeat goroutine to
// drain. Reading happens on its own goroutine; StartupSequence is called
// from the heartbeat.
type Receiver struct {
	cfg   Config
	fixes chan Fix

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last    atomic.Value // Snapshot
	nfix    atomic.Uint64
	dropped atomic.Uint64

	mu     sync.Mutex
	closer io.Closer
	port   io.Writer
}

func New(cfg Config) *Receiver {
	r := &Receiver{cfg: cfg, fixes: make(chan Fix, 4)}
	r.last.Store(Snapshot{Enabled: cfg.Enable, Source: r.source(), Device: cfg.Device, Baud: cfg.Baud})
	return r
}

func (r *Receiver) source() string {
	src := strings.ToLower(strings.TrimSpace(r.cfg.Source))
	if src == "" {
		return "nmea"
	}
	return src
}

// Fixes delivers completed epochs. When the consumer falls behind the
// oldest pending fix is dropped.
func (r *Receiver) Fixes() <-chan Fix {
	return r.fixes
}

func (r *Receiver) Start(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("gps: receiver is nil")
	}
	if !r.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("gps: ctx is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}
	if r.source() == "gpsd" {
		return r.startGPSDLocked(ctx)
	}
	return r.startNMEALocked(ctx)
}

func (r *Receiver) startNMEALocked(ctx context.Context) error {
	device := strings.TrimSpace(r.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			r.setErrorLocked("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps: auto-detect failed")
		}
	}
	baud := r.cfg.Baud
	if baud == 0 {
		baud = 9600
	}

	f, err := openSerial(device, baud)
	if err != nil {
		r.setErrorLocked(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, baud, err))
		return fmt.Errorf("gps: open %s: %w", device, err)
	}
	r.closer = f
	r.port = f

	childCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	snap := r.Snapshot()
	snap.Device = device
	snap.Baud = baud
	r.last.Store(snap)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { _ = f.Close() }()
		log.Printf("gps enabled device=%s baud=%d", device, baud)
		r.readNMEA(childCtx, f)
	}()
	return nil
}

// readNMEA parses sentences until rd fails or ctx is done.
func (r *Receiver) readNMEA(ctx context.Context, rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	// NMEA sentences are under 82 characters; leave headroom for chatter.
	scanner.Buffer(make([]byte, 0, 256), 4096)

	var ep epoch
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			r.setError(fmt.Sprintf("gps read stopped: %v", err))
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sent, err := parseSentence(line)
		if err != nil {
			r.setError(err.Error())
			continue
		}
		if ep.apply(time.Now().UTC(), sent) {
			r.publish(ep.fix)
		}
	}
}

func (r *Receiver) startGPSDLocked(ctx context.Context) error {
	addr := strings.TrimSpace(r.cfg.GPSDAddr)
	if addr == "" {
		addr = gpsdDefaultAddr
	}
	childCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	snap := r.Snapshot()
	snap.Device = "gpsd " + addr
	r.last.Store(snap)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runGPSD(childCtx, addr)
	}()
	return nil
}

func (r *Receiver) publish(f Fix) {
	r.nfix.Add(1)
	for {
		select {
		case r.fixes <- f:
			r.mu.Lock()
			snap := r.Snapshot()
			snap.Fix = f
			snap.Fixes = r.nfix.Load()
			snap.Dropped = r.dropped.Load()
			r.last.Store(snap)
			r.mu.Unlock()
			return
		default:
		}
		select {
		case <-r.fixes:
			r.dropped.Add(1)
		default:
		}
	}
}

func (r *Receiver) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	cancel := r.cancel
	closer := r.closer
	r.cancel = nil
	r.closer = nil
	r.port = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	r.wg.Wait()
}

func (r *Receiver) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	v := r.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (r *Receiver) setError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setErrorLocked(msg)
}

func (r *Receiver) setErrorLocked(msg string) {
	cur := r.Snapshot()
	cur.LastError = msg
	r.last.Store(cur)
}

func autoDetectDevice() string {
	var candidates []string
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB"} {
		for i := 0; i < 10; i++ {
			candidates = append(candidates, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
