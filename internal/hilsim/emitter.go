package hilsim

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Emitter writes one frame per heartbeat. Outputs supplies the actuator
// values at emission time.
type Emitter struct {
	Variant Variant
	Outputs func() []uint16
	Sink    io.Writer

	frames atomic.Uint64
	bytes  atomic.Uint64
	errs   atomic.Uint64
}

type Stats struct {
	Frames uint64 `json:"frames"`
	Bytes  uint64 `json:"bytes"`
	Errors uint64 `json:"errors"`
}

// Emit builds and writes the current frame. The returned error is for
// accounting only.
func (e *Emitter) Emit() error {
	if e.Sink == nil {
		return nil
	}
	var ch []uint16
	if e.Outputs != nil {
		ch = e.Outputs()
	}

	var frame []byte
	switch e.Variant {
	case Variable:
		f, err := VariableFrame(ch)
		if err != nil {
			e.errs.Add(1)
			return err
		}
		frame = f
	default:
		f := FixedFrame(ch)
		frame = f[:]
	}

	n, err := e.Sink.Write(frame)
	if err != nil {
		e.errs.Add(1)
		return fmt.Errorf("hilsim: write frame: %w", err)
	}
	e.frames.Add(1)
	e.bytes.Add(uint64(n))
	return nil
}

func (e *Emitter) Stats() Stats {
	return Stats{Frames: e.frames.Load(), Bytes: e.bytes.Load(), Errors: e.errs.Load()}
}
