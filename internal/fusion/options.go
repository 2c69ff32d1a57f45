package fusion

import (
	"fmt"
	"strings"

	"navcore/internal/dcm"
)

// AltitudeSource selects where altitude comes from. Barometer-assisted
// altitude also raises the slow-sensor poll rate from 4 Hz to 40 Hz.
type AltitudeSource int

const (
	AltitudeGPS AltitudeSource = iota
	AltitudeBarometer
)

func (a AltitudeSource) String() string {
	if a == AltitudeBarometer {
		return "barometer"
	}
	return "gps"
}

func ParseAltitudeSource(s string) (AltitudeSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gps":
		return AltitudeGPS, nil
	case "barometer", "baro":
		return AltitudeBarometer, nil
	}
	return 0, fmt.Errorf("unknown altitude source %q", s)
}

// YawReference selects which sensor corrects heading drift.
type YawReference int

const (
	YawMagnetometer YawReference = iota
	YawGPSCourse
)

func (y YawReference) String() string {
	if y == YawGPSCourse {
		return "gps_course"
	}
	return "magnetometer"
}

func ParseYawReference(s string) (YawReference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "magnetometer", "mag":
		return YawMagnetometer, nil
	case "gps_course", "gps":
		return YawGPSCourse, nil
	}
	return 0, fmt.Errorf("unknown yaw reference %q", s)
}

const DefaultHeartbeatHz = 40

// Options is chosen once at startup.
type Options struct {
	HeartbeatHz    int
	AltitudeSource AltitudeSource
	YawReference   YawReference
	Orientation    dcm.BoardOrientation
	// HIL enables frame emission at the end of every heartbeat.
	HIL bool
}

func (o Options) Validate() error {
	if o.HeartbeatHz <= 0 || o.HeartbeatHz%InitStepHz != 0 {
		return fmt.Errorf("fusion: heartbeat %d Hz is not a positive multiple of %d", o.HeartbeatHz, InitStepHz)
	}
	return nil
}
