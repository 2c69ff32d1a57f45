package led

import (
	"errors"
	"testing"

	"navcore/internal/fusion"
)

type fakeLine struct {
	values []int
	err    error
	closed bool
}

func (f *fakeLine) SetValue(v int) error {
	if f.err != nil {
		return f.err
	}
	f.values = append(f.values, v)
	return nil
}

func (f *fakeLine) Close() error {
	f.closed = true
	return nil
}

func withFakeLine(t *testing.T) *fakeLine {
	t.Helper()
	fl := &fakeLine{}
	prev := openLineFn
	openLineFn = func(pin int) (line, error) { return fl, nil }
	t.Cleanup(func() { openLineFn = prev })
	return fl
}

func TestLevel(t *testing.T) {
	const hz = 40
	if Level(fusion.Uncalibrated, 3, hz) {
		t.Fatalf("lit before heartbeat")
	}
	for tick := uint64(0); tick < 100; tick++ {
		if !Level(fusion.Ready, tick, hz) {
			t.Fatalf("ready not solid at tick %d", tick)
		}
	}

	// 4 Hz at 40 Hz: five ticks on, five off.
	on := 0
	for tick := uint64(0); tick < 40; tick++ {
		if Level(fusion.BiasCalibrating, tick, hz) {
			on++
		}
	}
	if on != 20 {
		t.Fatalf("calibrating on ticks=%d want 20", on)
	}
	if !Level(fusion.BiasCalibrating, 4, hz) || Level(fusion.BiasCalibrating, 5, hz) {
		t.Fatalf("calibrating blink phase wrong")
	}
	if !Level(fusion.BiasDoneWaitingGPS, 19, hz) || Level(fusion.BiasDoneWaitingGPS, 20, hz) {
		t.Fatalf("waiting blink phase wrong")
	}
}

func TestIndicator_WritesOnlyChanges(t *testing.T) {
	fl := withFakeLine(t)
	ind, err := New(17, 40)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for tick := uint64(0); tick < 20; tick++ {
		if err := ind.Update(fusion.BiasCalibrating, tick); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	for tick := uint64(20); tick < 30; tick++ {
		_ = ind.Update(fusion.Ready, tick)
	}
	want := []int{1, 0, 1, 0, 1}
	if len(fl.values) != len(want) {
		t.Fatalf("values=%v want %v", fl.values, want)
	}
	for i := range want {
		if fl.values[i] != want[i] {
			t.Fatalf("values=%v want %v", fl.values, want)
		}
	}

	if err := ind.Close(); err != nil || !fl.closed {
		t.Fatalf("Close()=%v closed=%v", err, fl.closed)
	}
	if err := ind.Update(fusion.Ready, 31); err != nil {
		t.Fatalf("Update after close: %v", err)
	}
}

func TestIndicator_ErrorsCounted(t *testing.T) {
	fl := withFakeLine(t)
	fl.err = errors.New("busy")
	ind, _ := New(17, 40)
	if err := ind.Update(fusion.Ready, 1); err == nil {
		t.Fatalf("expected error")
	}
	if err := ind.Update(fusion.Ready, 2); err == nil {
		t.Fatalf("failed write not retried")
	}
	if ind.Errors() != 2 {
		t.Fatalf("errors=%d want 2", ind.Errors())
	}
}

func TestNew_Validation(t *testing.T) {
	withFakeLine(t)
	if _, err := New(17, 0); err == nil {
		t.Fatalf("expected error")
	}
	openLineFn = func(pin int) (line, error) { return nil, errors.New("no chip") }
	if _, err := New(17, 40); err == nil {
		t.Fatalf("expected open error")
	}
}
