package flightlog

import (
	"context"
	"path/filepath"
	"testing"

	"navcore/internal/fixmath"
	"navcore/internal/fusion"
	"navcore/internal/navref"
)

func TestRecorder_KeepsEveryNthSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.db")
	r := New(path, 10)
	if err := r.Start(context.Background(), 40, map[string]any{"heartbeat_hz": 40}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for tick := uint64(1); tick <= 100; tick++ {
		s := fusion.Snapshot{
			Tick:    tick,
			State:   fusion.BiasCalibrating,
			Roll:    -3,
			Pitch:   2,
			Heading: 200,
			Bias:    fixmath.Vector{1, -2, 3},
		}
		if tick >= 50 {
			s.State = fusion.Ready
			s.PositionValid = true
			s.Position = navref.Relative32{X: int32(tick), Y: -5, Z: 100}
		}
		r.Record(s)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := r.Stats(); st.Written != 10 || st.Dropped != 0 || st.Failed != 0 {
		t.Fatalf("stats=%+v", st)
	}

	sessions, err := Sessions(context.Background(), path)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != r.SessionID() || sessions[0].HeartbeatHz != 40 {
		t.Fatalf("sessions=%+v", sessions)
	}
	if sessions[0].Config == nil || *sessions[0].Config != `{"heartbeat_hz":40}` {
		t.Fatalf("config=%v", sessions[0].Config)
	}

	rows, err := Snapshots(context.Background(), path, r.SessionID())
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("rows=%d want 10", len(rows))
	}
	first, last := rows[0], rows[9]
	if first.Tick != 10 || first.State != "bias_calibrating" || first.PosX.Valid {
		t.Fatalf("first=%+v", first)
	}
	if first.Roll != -3 || first.Pitch != 2 || first.Heading != 200 || first.Bias != [3]int16{1, -2, 3} {
		t.Fatalf("first attitude=%+v", first)
	}
	if last.Tick != 100 || last.State != "ready" || !last.PosX.Valid || last.PosX.Int64 != 100 || last.PosY.Int64 != -5 {
		t.Fatalf("last=%+v", last)
	}
	if last.BaroAltCm.Valid {
		t.Fatalf("baro recorded while invalid")
	}
}

func TestRecorder_RecordBeforeStartIgnored(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "x.db"), 0)
	r.Record(fusion.Snapshot{Tick: 1})
	if st := r.Stats(); st != (Stats{}) {
		t.Fatalf("stats=%+v", st)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var nilRec *Recorder
	nilRec.Record(fusion.Snapshot{Tick: 1})
}

func TestRecorder_StartTwice(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "x.db"), 1)
	if err := r.Start(context.Background(), 40, "raw config"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Close()
	if err := r.Start(context.Background(), 40, nil); err == nil {
		t.Fatalf("expected error on second Start")
	}
}

func TestRecorder_BadPath(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing", "dir", "x.db"), 1)
	if err := r.Start(context.Background(), 40, nil); err == nil {
		t.Fatalf("expected error")
	}
	_ = r.Close()
}
