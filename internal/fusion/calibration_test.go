package fusion

import "testing"

type countdownRecorder struct {
	got []int
}

func (r *countdownRecorder) StartupSequence(countdown int) {
	r.got = append(r.got, countdown)
}

func quietCalibration(capture func(), gps GPSStartup) *Calibration {
	c := NewCalibration(capture, gps)
	c.Logf = func(string, ...any) {}
	return c
}

func TestCalibration_StepSchedule(t *testing.T) {
	captures := 0
	gps := &countdownRecorder{}
	c := quietCalibration(func() { captures++ }, gps)

	if c.State() != Uncalibrated {
		t.Fatalf("state=%s want uncalibrated", c.State())
	}
	for count := 1; count < CalibCount; count++ {
		c.Step(count)
	}
	if c.CalibFinished() || captures != 0 {
		t.Fatalf("calibrated early: finished=%v captures=%d", c.CalibFinished(), captures)
	}
	if c.State() != BiasCalibrating {
		t.Fatalf("state=%s want bias_calibrating", c.State())
	}

	c.Step(CalibCount)
	if !c.CalibFinished() || captures != 1 {
		t.Fatalf("finished=%v captures=%d want true,1", c.CalibFinished(), captures)
	}
	if c.State() != BiasDoneWaitingGPS {
		t.Fatalf("state=%s want bias_done_waiting_gps", c.State())
	}

	for count := CalibCount + 1; count < GPSCount; count++ {
		c.Step(count)
	}
	if c.InitFinished() {
		t.Fatalf("init finished early")
	}
	c.Step(GPSCount)
	if !c.InitFinished() || c.State() != Ready {
		t.Fatalf("state=%s want ready", c.State())
	}

	if len(gps.got) != GPSCount {
		t.Fatalf("startup calls=%d want %d", len(gps.got), GPSCount)
	}
	if gps.got[0] != GPSCount-1 || gps.got[len(gps.got)-1] != 0 {
		t.Fatalf("countdown first=%d last=%d", gps.got[0], gps.got[len(gps.got)-1])
	}

	// Past GPSCount nothing more happens.
	c.Step(GPSCount + 1)
	if len(gps.got) != GPSCount || captures != 1 {
		t.Fatalf("extra work after ready: startup=%d captures=%d", len(gps.got), captures)
	}
}

func TestCalibration_CaptureGuard(t *testing.T) {
	captures := 0
	c := quietCalibration(func() { captures++ }, nil)

	if c.Calibrate() {
		t.Fatalf("capture allowed before calibration period finished")
	}
	if c.RequestRecalibration() {
		t.Fatalf("recalibration accepted before calibration period finished")
	}

	c.Step(CalibCount)
	if captures != 1 {
		t.Fatalf("captures=%d want 1", captures)
	}
	if c.Calibrate() {
		t.Fatalf("second capture without request was accepted")
	}
	if captures != 1 || !c.CalibFinished() {
		t.Fatalf("captures=%d finished=%v", captures, c.CalibFinished())
	}

	if !c.RequestRecalibration() {
		t.Fatalf("recalibration request rejected")
	}
	if !c.Calibrate() {
		t.Fatalf("requested recapture rejected")
	}
	if c.Calibrate() {
		t.Fatalf("request allowed more than one recapture")
	}
	if captures != 2 {
		t.Fatalf("captures=%d want 2", captures)
	}
}

func TestCalibration_LogsMilestones(t *testing.T) {
	var lines []string
	c := NewCalibration(nil, nil)
	c.Logf = func(format string, args ...any) { lines = append(lines, format) }
	c.Step(CalibCount)
	c.Step(GPSCount)
	if len(lines) != 2 || lines[0] != "calib_finished" || lines[1] != "init_finished" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Uncalibrated:       "uncalibrated",
		BiasCalibrating:    "bias_calibrating",
		BiasDoneWaitingGPS: "bias_done_waiting_gps",
		Ready:              "ready",
		State(9):           "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("got=%q want=%q", got, want)
		}
	}
}
