package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"navcore/internal/ahrs"
	"navcore/internal/flightlog"
	"navcore/internal/fusion"
	"navcore/internal/hilsim"
)

func (r *runtime) statusLine() string {
	var hil *hilsim.Stats
	if r.emitter != nil {
		st := r.emitter.Stats()
		hil = &st
	}
	var fl *flightlog.Stats
	if r.recorder != nil {
		st := r.recorder.Stats()
		fl = &st
	}
	return formatStatus(r.svc.Snapshot(), hil, fl)
}

func formatStatus(s ahrs.Snapshot, hil *hilsim.Stats, fl *flightlog.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "navcore status state=%s ticks=%s roll=%d pitch=%d heading=%d bias=%v",
		s.State, humanize.Comma(int64(s.Tick)), s.Roll, s.Pitch, s.Heading, s.Bias)
	if s.PositionValid {
		fmt.Fprintf(&b, " pos=%d,%d,%d", s.Position.X, s.Position.Y, s.Position.Z)
	}
	fmt.Fprintf(&b, " fixes=%s imu_errors=%d overruns=%d", humanize.Comma(int64(s.Fixes)), s.IMUErrors, s.Overruns)
	if hil != nil {
		fmt.Fprintf(&b, " hil_frames=%s hil_bytes=%s hil_errors=%d",
			humanize.Comma(int64(hil.Frames)), humanize.Bytes(hil.Bytes), hil.Errors)
	}
	if fl != nil {
		fmt.Fprintf(&b, " log_rows=%s log_dropped=%d", humanize.Comma(int64(fl.Written)), fl.Dropped)
	}
	if s.Errors > 0 {
		fmt.Fprintf(&b, " errors=%d last_error=%q", s.Errors, s.LastError)
	}
	if s.IMULastError != "" {
		fmt.Fprintf(&b, " imu_last_error=%q", s.IMULastError)
	}
	return b.String()
}

type logSummary struct {
	Rows       int
	FirstTick  uint64
	LastTick   uint64
	Positioned int
	MaxErrors  uint64
	// StateAt is the first recorded tick in each startup state.
	StateAt map[string]uint64
}

func summarizeRows(rows []flightlog.Row) logSummary {
	s := logSummary{StateAt: map[string]uint64{}}
	for i, r := range rows {
		if i == 0 {
			s.FirstTick = r.Tick
		}
		s.Rows++
		s.LastTick = r.Tick
		if _, ok := s.StateAt[r.State]; !ok {
			s.StateAt[r.State] = r.Tick
		}
		if r.PosX.Valid {
			s.Positioned++
		}
		if r.Errors > s.MaxErrors {
			s.MaxErrors = r.Errors
		}
	}
	return s
}

func printLogSummary(ctx context.Context, w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	sessions, err := flightlog.Sessions(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "size: %s\n", humanize.Bytes(uint64(fi.Size())))
	fmt.Fprintf(w, "sessions: %d\n", len(sessions))
	for _, sess := range sessions {
		rows, err := flightlog.Snapshots(ctx, path, sess.ID)
		if err != nil {
			return err
		}
		s := summarizeRows(rows)
		fmt.Fprintf(w, "session %d: started %s heartbeat_hz=%d rows=%s ticks=%d-%d positioned=%d max_errors=%d\n",
			sess.ID, humanize.Time(sess.StartTime), sess.HeartbeatHz,
			humanize.Comma(int64(s.Rows)), s.FirstTick, s.LastTick, s.Positioned, s.MaxErrors)
		for _, st := range []fusion.State{fusion.BiasCalibrating, fusion.BiasDoneWaitingGPS, fusion.Ready} {
			if at, ok := s.StateAt[st.String()]; ok {
				fmt.Fprintf(w, "  %s at tick %d\n", st, at)
			}
		}
	}
	return nil
}
