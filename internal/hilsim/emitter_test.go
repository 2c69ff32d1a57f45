package hilsim

import (
	"bytes"
	"errors"
	"testing"
)

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("sim offline") }

func TestEmitter_WritesFrames(t *testing.T) {
	var buf bytes.Buffer
	outputs := []uint16{3000, 3100, 2900, 3500, 2500, 4000, 2000, 3000}
	e := &Emitter{Outputs: func() []uint16 { return outputs }, Sink: &buf}

	for i := 0; i < 3; i++ {
		if err := e.Emit(); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	want := FixedFrame(outputs)
	if buf.Len() != 3*FixedFrameLen || !bytes.Equal(buf.Bytes()[:FixedFrameLen], want[:]) {
		t.Fatalf("wrote % X", buf.Bytes())
	}
	if st := e.Stats(); st.Frames != 3 || st.Bytes != 60 || st.Errors != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestEmitter_Variable(t *testing.T) {
	var buf bytes.Buffer
	e := &Emitter{Variant: Variable, Outputs: func() []uint16 { return []uint16{3000, 3000} }, Sink: &buf}
	if err := e.Emit(); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if buf.Len() != 3+4+2 || buf.Bytes()[0] != 0xFE {
		t.Fatalf("wrote % X", buf.Bytes())
	}
}

func TestEmitter_ErrorsCounted(t *testing.T) {
	e := &Emitter{Sink: errWriter{}}
	if err := e.Emit(); err == nil {
		t.Fatalf("expected error")
	}
	e.Variant = Variable
	if err := e.Emit(); err == nil {
		t.Fatalf("expected error for empty variable frame")
	}
	if st := e.Stats(); st.Errors != 2 || st.Frames != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestEmitter_NoSink(t *testing.T) {
	e := &Emitter{}
	if err := e.Emit(); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if e.Stats().Frames != 0 {
		t.Fatalf("counted a frame without a sink")
	}
}
