package web

import (
	"time"

	"navcore/internal/ahrs"
	"navcore/internal/flightlog"
	"navcore/internal/gps"
	"navcore/internal/hilsim"
	"navcore/internal/i2c"
)

// Sources are read on every status request. Nil sources are left out of
// the response.
type Sources struct {
	AHRS      func() ahrs.Snapshot
	GPS       func() gps.Snapshot
	HIL       func() hilsim.Stats
	FlightLog func() flightlog.Stats
	I2C       func() i2c.Stats
}

type Status struct {
	start time.Time
	src   Sources
}

func NewStatus(src Sources) *Status {
	return &Status{start: time.Now().UTC(), src: src}
}

// AttitudeSnapshot is the estimator output converted to degrees for
// people. It is not a flight instrument.
type AttitudeSnapshot struct {
	State       string    `json:"state"`
	Tick        uint64    `json:"tick"`
	RollDeg     float64   `json:"roll_deg"`
	PitchDeg    float64   `json:"pitch_deg"`
	HeadingDeg  float64   `json:"heading_deg"`
	GyroOffsets [3]int16  `json:"gyro_offsets"`
	GyroBias    [3]int16  `json:"gyro_bias"`
	Corrections [3]uint64 `json:"corrections"`

	IMUErrors    uint64 `json:"imu_errors"`
	IMULastError string `json:"imu_last_error,omitempty"`
	Overruns     uint64 `json:"overruns"`
	Errors       uint64 `json:"errors"`
	LastError    string `json:"last_error,omitempty"`

	LastUpdateUTC string `json:"last_update_utc,omitempty"`
}

// PositionSnapshot is relative to the origin, in metres.
type PositionSnapshot struct {
	HasOrigin bool     `json:"has_origin"`
	OriginLat float64  `json:"origin_lat_deg,omitempty"`
	OriginLon float64  `json:"origin_lon_deg,omitempty"`
	Valid     bool     `json:"valid"`
	X         int32    `json:"x_m"`
	Y         int32    `json:"y_m"`
	Z         int32    `json:"z_m"`
	BaroAltM  *float64 `json:"baro_alt_m,omitempty"`
}

type GPSSnapshot struct {
	Enabled     bool    `json:"enabled"`
	Source      string  `json:"source"`
	Valid       bool    `json:"valid"`
	Sats        int     `json:"sats"`
	HDOP        float64 `json:"hdop"`
	Fixes       uint64  `json:"fixes"`
	Dropped     uint64  `json:"dropped"`
	StartupDone bool    `json:"startup_done"`
	LastError   string  `json:"last_error,omitempty"`
}

type StatusSnapshot struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	UptimeSec int64  `json:"uptime_sec"`
	Running   bool   `json:"running"`

	Attitude  *AttitudeSnapshot `json:"attitude,omitempty"`
	Position  *PositionSnapshot `json:"position,omitempty"`
	GPS       *GPSSnapshot      `json:"gps,omitempty"`
	HIL       *hilsim.Stats     `json:"hil,omitempty"`
	FlightLog *flightlog.Stats  `json:"flightlog,omitempty"`
	I2C       *i2c.Stats        `json:"i2c,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := StatusSnapshot{
		Service:   "navcore",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(s.start).Seconds()),
	}

	if s.src.AHRS != nil {
		a := s.src.AHRS()
		snap.Running = a.Running
		att := AttitudeSnapshot{
			State:        a.State.String(),
			Tick:         a.Tick,
			RollDeg:      byteCirToDeg(int(a.Roll)),
			PitchDeg:     byteCirToDeg(int(a.Pitch)),
			HeadingDeg:   byteCirToDeg(int(a.Heading)),
			GyroOffsets:  a.Offsets,
			GyroBias:     a.Bias,
			Corrections:  a.Corrections,
			IMUErrors:    a.IMUErrors,
			IMULastError: a.IMULastError,
			Overruns:     a.Overruns,
			Errors:       a.Errors,
			LastError:    a.LastError,
		}
		if !a.UpdatedAt.IsZero() {
			att.LastUpdateUTC = a.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
		snap.Attitude = &att

		pos := PositionSnapshot{HasOrigin: a.HasOrigin, Valid: a.PositionValid}
		if a.HasOrigin {
			pos.OriginLat = float64(a.Origin.Lat) / 1e7
			pos.OriginLon = float64(a.Origin.Lon) / 1e7
		}
		if a.PositionValid {
			pos.X, pos.Y, pos.Z = a.Position.X, a.Position.Y, a.Position.Z
		}
		if a.BaroAltValid {
			m := float64(a.BaroAltCm) / 100
			pos.BaroAltM = &m
		}
		snap.Position = &pos
	}

	if s.src.GPS != nil {
		g := s.src.GPS()
		snap.GPS = &GPSSnapshot{
			Enabled:     g.Enabled,
			Source:      g.Source,
			Valid:       g.Fix.Valid,
			Sats:        g.Fix.Sats,
			HDOP:        g.Fix.HDOP,
			Fixes:       g.Fixes,
			Dropped:     g.Dropped,
			StartupDone: g.StartupDone,
			LastError:   g.LastError,
		}
	}
	if s.src.HIL != nil {
		st := s.src.HIL()
		snap.HIL = &st
	}
	if s.src.FlightLog != nil {
		st := s.src.FlightLog()
		snap.FlightLog = &st
	}
	if s.src.I2C != nil {
		st := s.src.I2C()
		snap.I2C = &st
	}
	return snap
}

// byteCirToDeg maps a byte-circular angle (256 per turn) to degrees.
func byteCirToDeg(b int) float64 {
	return float64(b) * 360 / 256
}
