package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"navcore/internal/dcm"
	"navcore/internal/fusion"
	"navcore/internal/hilsim"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HeartbeatHz != 40 || cfg.NumOutputs != 5 {
		t.Fatalf("heartbeat=%d outputs=%d", cfg.HeartbeatHz, cfg.NumOutputs)
	}
	if cfg.I2C.Bus != 1 || cfg.I2C.IMUAddr != 0x68 || cfg.I2C.MagAddr != 0x1E || cfg.I2C.BaroAddr != 0x77 {
		t.Fatalf("i2c=%+v", cfg.I2C)
	}
	if cfg.GPS.Source != "nmea" || cfg.GPS.Baud != 9600 {
		t.Fatalf("gps=%+v", cfg.GPS)
	}
	if cfg.HIL.Dest != "127.0.0.1:49000" || len(cfg.HIL.Trim) != 5 || cfg.HIL.Trim[4] != 3000 {
		t.Fatalf("hil=%+v", cfg.HIL)
	}
	if cfg.Sim.Period != 60*time.Second || cfg.Sim.Hold != 25*time.Second || cfg.Sim.RadiusM != 200 {
		t.Fatalf("sim=%+v", cfg.Sim)
	}
	if cfg.FlightLog.Path != "navcore.db" || cfg.FlightLog.Every != 10 {
		t.Fatalf("flightlog=%+v", cfg.FlightLog)
	}
	if cfg.Web.Enable || cfg.Web.Listen != ":8080" {
		t.Fatalf("web=%+v", cfg.Web)
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeTempConfig(t, `
heartbeat_hz: 200
board_orientation: backwards
altitude_source: barometer
yaw_reference: gps_course
num_outputs: 3
i2c: {bus: 3, imu_addr: 0x69, mag_addr: 0x1e, baro_addr: 0x76}
gps: {enable: true, source: gpsd, gpsd_addr: "127.0.0.1:2947"}
hil: {enable: true, variant: variable, dest: "10.0.0.2:49000", trim: [3000, 3100, 2900]}
flightlog: {enable: true, path: /tmp/f.db, every: 40}
led: {enable: true, pin: 17}
web: {enable: true, listen: "127.0.0.1:9090"}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Web.Enable || cfg.Web.Listen != "127.0.0.1:9090" {
		t.Fatalf("web=%+v", cfg.Web)
	}
	if cfg.I2C.IMUAddr != 0x69 || cfg.I2C.Bus != 3 {
		t.Fatalf("i2c=%+v", cfg.I2C)
	}
	if cfg.HILVariant() != hilsim.Variable || cfg.HIL.Trim[1] != 3100 {
		t.Fatalf("hil=%+v", cfg.HIL)
	}

	opts, err := cfg.Fusion()
	if err != nil {
		t.Fatalf("Fusion() error: %v", err)
	}
	want := fusion.Options{
		HeartbeatHz:    200,
		AltitudeSource: fusion.AltitudeBarometer,
		YawReference:   fusion.YawGPSCourse,
		Orientation:    dcm.OrientationBackwards,
		HIL:            true,
	}
	if opts != want {
		t.Fatalf("opts=%+v want %+v", opts, want)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"HeartbeatMultiple", "heartbeat_hz: 50\n", "heartbeat_hz must be a multiple of 40"},
		{"HeartbeatNegative", "heartbeat_hz: -40\n", "heartbeat_hz must be a multiple of 40"},
		{"Orientation", "board_orientation: sideways\n", `board_orientation: unknown board orientation "sideways"`},
		{"AltitudeSource", "altitude_source: lidar\n", `altitude_source: unknown altitude source "lidar"`},
		{"YawReference", "yaw_reference: stars\n", `yaw_reference: unknown yaw reference "stars"`},
		{"TooManyOutputs", "num_outputs: 17\n", "num_outputs must be between 1 and 16"},
		{"FixedTooWide", "num_outputs: 9\n", "hil.variant 'fixed' supports at most 8 outputs"},
		{"Variant", "hil: {variant: mavlink}\n", "hil.variant must be 'fixed' or 'variable'"},
		{"TrimLength", "num_outputs: 2\nhil: {trim: [3000]}\n", "hil.trim must have num_outputs (2) entries"},
		{"GPSSource", "gps: {source: usb}\n", "gps.source must be 'nmea' or 'gpsd'"},
		{"SimAndGPS", "sim: {enable: true}\ngps: {enable: true}\n", "sim and gps cannot both be enabled"},
		{"SimUnbounded", "sim: {enable: true}\n", "sim.duration is required unless sim.realtime is set"},
		{"LEDPin", "led: {enable: true}\n", "led.pin is required when led.enable is true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_VariableAllowsSixteenOutputs(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "num_outputs: 16\nhil: {variant: variable}\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.HIL.Trim) != 16 {
		t.Fatalf("trim=%v", cfg.HIL.Trim)
	}
}

func TestLoad_SimDurations(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "sim: {enable: true, period: 90s, hold: 30s, gyro_offset: [4, -2, 9], duration: 2m}\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Sim.Period != 90*time.Second || cfg.Sim.Hold != 30*time.Second || cfg.Sim.Duration != 2*time.Minute {
		t.Fatalf("sim=%+v", cfg.Sim)
	}
	if cfg.Sim.GyroOffset != [3]int16{4, -2, 9} {
		t.Fatalf("gyro_offset=%v", cfg.Sim.GyroOffset)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, "gps:\n  enable: false\n  mode: nmea\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field mode not found in type config.GPSConfig")
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "navcore.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Sim.Enable || !cfg.Sim.Realtime || cfg.GPS.Enable {
		t.Fatalf("sim=%+v gps=%+v", cfg.Sim, cfg.GPS)
	}
	if _, err := cfg.Fusion(); err != nil {
		t.Fatalf("Fusion() error: %v", err)
	}
}
