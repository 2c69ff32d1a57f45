package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"navcore/internal/ahrs"
	"navcore/internal/fusion"
	"navcore/internal/gps"
	"navcore/internal/hilsim"
)

type fakeController struct {
	recalErr error
	recals   int
	resets   int
}

func (c *fakeController) Recalibrate(ctx context.Context) error {
	c.recals++
	return c.recalErr
}

func (c *fakeController) ResetOrigin() { c.resets++ }

func testStatus() *Status {
	return NewStatus(Sources{
		AHRS: func() ahrs.Snapshot {
			var s ahrs.Snapshot
			s.Running = true
			s.Tick = 1200
			s.State = fusion.Ready
			s.Roll = -32
			s.Heading = 64
			s.HasOrigin = true
			s.Origin.Lat = 455000000
			s.PositionValid = true
			s.Position.X = 200
			s.UpdatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			return s
		},
		GPS: func() gps.Snapshot {
			return gps.Snapshot{Enabled: true, Source: "nmea", Fixes: 7, Fix: gps.Fix{Valid: true, Sats: 9}}
		},
		HIL: func() hilsim.Stats { return hilsim.Stats{Frames: 1200, Bytes: 24000} },
	})
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestAPIStatus(t *testing.T) {
	ts := httptest.NewServer(Handler(testStatus(), nil, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "navcore" || !snap.Running {
		t.Fatalf("service=%q running=%v", snap.Service, snap.Running)
	}
	if snap.Attitude == nil || snap.Attitude.State != "ready" || snap.Attitude.Tick != 1200 {
		t.Fatalf("attitude=%+v", snap.Attitude)
	}
	if snap.Attitude.HeadingDeg != 90 || snap.Attitude.RollDeg != -45 {
		t.Fatalf("heading=%v roll=%v", snap.Attitude.HeadingDeg, snap.Attitude.RollDeg)
	}
	if snap.Attitude.LastUpdateUTC != "2024-01-02T03:04:05Z" {
		t.Fatalf("last_update=%q", snap.Attitude.LastUpdateUTC)
	}
	if snap.Position == nil || !snap.Position.Valid || snap.Position.X != 200 || snap.Position.OriginLat != 45.5 {
		t.Fatalf("position=%+v", snap.Position)
	}
	if snap.Position.BaroAltM != nil {
		t.Fatalf("baro altitude reported without a reading")
	}
	if snap.GPS == nil || snap.GPS.Fixes != 7 || snap.GPS.Sats != 9 || !snap.GPS.Valid {
		t.Fatalf("gps=%+v", snap.GPS)
	}
	if snap.HIL == nil || snap.HIL.Frames != 1200 {
		t.Fatalf("hil=%+v", snap.HIL)
	}
	if snap.FlightLog != nil || snap.I2C != nil {
		t.Fatalf("optional sections reported without a source")
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(Handler(testStatus(), nil, nil))
	defer ts.Close()

	resp := post(t, ts.URL+"/api/status")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != http.MethodGet {
		t.Fatalf("code=%d allow=%q", resp.StatusCode, resp.Header.Get("Allow"))
	}
}

func TestAPIRecalibrate(t *testing.T) {
	ctl := &fakeController{}
	ts := httptest.NewServer(Handler(testStatus(), nil, ctl))
	defer ts.Close()

	resp := post(t, ts.URL+"/api/ahrs/recalibrate")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || ctl.recals != 1 {
		t.Fatalf("code=%d recals=%d", resp.StatusCode, ctl.recals)
	}

	ctl.recalErr = errors.New("ahrs: initial calibration still running")
	resp = post(t, ts.URL+"/api/ahrs/recalibrate")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(body), "initial calibration") {
		t.Fatalf("code=%d body=%q", resp.StatusCode, body)
	}

	ctl.recalErr = context.DeadlineExceeded
	resp = post(t, ts.URL+"/api/ahrs/recalibrate")
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("code=%d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/api/ahrs/recalibrate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET code=%d", resp.StatusCode)
	}
}

func TestAPIOriginReset(t *testing.T) {
	ctl := &fakeController{}
	ts := httptest.NewServer(Handler(testStatus(), nil, ctl))
	defer ts.Close()

	resp := post(t, ts.URL+"/api/origin/reset")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || ctl.resets != 1 {
		t.Fatalf("code=%d resets=%d", resp.StatusCode, ctl.resets)
	}
}

func TestAPIActions_NoController(t *testing.T) {
	ts := httptest.NewServer(Handler(testStatus(), nil, nil))
	defer ts.Close()

	for _, p := range []string{"/api/ahrs/recalibrate", "/api/origin/reset"} {
		resp := post(t, ts.URL+p)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s code=%d", p, resp.StatusCode)
		}
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, "127.0.0.1:0", Handler(testStatus(), nil, nil)) }()
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
	}
}
