package gps

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestReceiver_ReadNMEAPublishesEpochs(t *testing.T) {
	r := New(Config{Enable: true})
	input := strings.Join([]string{
		"garbage before the first sentence",
		nmeaLine(ggaFix),
		nmeaLine(rmcActive),
		"$GPRMC,bad*00",
		nmeaLine(ggaFix),
		nmeaLine(rmcActive),
	}, "\r\n") + "\r\n"

	r.readNMEA(context.Background(), strings.NewReader(input))

	var got []Fix
	for len(r.Fixes()) > 0 {
		got = append(got, <-r.Fixes())
	}
	if len(got) != 2 {
		t.Fatalf("fixes=%d want 2", len(got))
	}
	if got[0].AltCm != 54540 || !got[0].Valid {
		t.Fatalf("fix=%+v", got[0])
	}

	snap := r.Snapshot()
	if snap.Fixes != 2 || snap.Dropped != 0 {
		t.Fatalf("fixes=%d dropped=%d", snap.Fixes, snap.Dropped)
	}
	if !strings.Contains(snap.LastError, "EOF") {
		t.Fatalf("last_error=%q", snap.LastError)
	}
}

func TestReceiver_SlowConsumerDropsOldest(t *testing.T) {
	r := New(Config{Enable: true})
	for i := 1; i <= 6; i++ {
		r.publish(Fix{Lat: int32(i), Valid: true})
	}
	if len(r.Fixes()) != cap(r.fixes) {
		t.Fatalf("queued=%d", len(r.Fixes()))
	}
	first := <-r.Fixes()
	if first.Lat != 3 {
		t.Fatalf("oldest queued lat=%d want 3", first.Lat)
	}
	snap := r.Snapshot()
	if snap.Dropped != 2 || snap.Fixes != 6 || snap.Fix.Lat != 6 {
		t.Fatalf("snap=%+v", snap)
	}
}

func TestReceiver_DisabledStartIsNoop(t *testing.T) {
	r := New(Config{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if r.Snapshot().Enabled {
		t.Fatalf("disabled receiver reports enabled")
	}
	r.Close()
}

func TestReceiver_StartOpenFailureReturns(t *testing.T) {
	r := New(Config{Enable: true, Device: "/nonexistent/ttyGPS0"})
	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected open error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return")
	}
	if !strings.Contains(r.Snapshot().LastError, "/nonexistent/ttyGPS0") {
		t.Fatalf("last_error=%q", r.Snapshot().LastError)
	}
	r.Close()
}

func TestReceiver_SourceDefaultsToNMEA(t *testing.T) {
	if got := New(Config{Source: " GPSD "}).Snapshot().Source; got != "gpsd" {
		t.Fatalf("source=%q", got)
	}
	if got := New(Config{}).Snapshot().Source; got != "nmea" {
		t.Fatalf("source=%q", got)
	}
}

func TestReceiver_NilSafe(t *testing.T) {
	var r *Receiver
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	r.Close()
	r.StartupSequence(0)
	if r.Snapshot() != (Snapshot{}) {
		t.Fatalf("nil snapshot not zero")
	}
}
