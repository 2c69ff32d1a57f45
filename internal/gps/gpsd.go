package gps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"strings"
	"time"
)

const (
	gpsdDefaultAddr = "127.0.0.1:2947"

	// scaled=true asks for degrees, metres and m/s.
	gpsdWatch = `?WATCH={"enable":true,"json":true,"scaled":true}` + "\n"

	gpsdMinBackoff = 250 * time.Millisecond
	gpsdMaxBackoff = 10 * time.Second
)

// gpsdReport covers the TPV and SKY fields navcore uses. Other classes
// (VERSION, DEVICES, WATCH) decode into it harmlessly.
type gpsdReport struct {
	Class string `json:"class"`

	// TPV
	Mode   int      `json:"mode"`
	Time   string   `json:"time"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Alt    *float64 `json:"alt"`
	AltMSL *float64 `json:"altMSL"`
	Speed  *float64 `json:"speed"`
	Track  *float64 `json:"track"`

	// SKY
	HDOP       *float64 `json:"hdop"`
	USat       *int     `json:"uSat"`
	Satellites []struct {
		Used bool `json:"used"`
	} `json:"satellites"`
}

// gpsd applies one report and reports whether it closed an epoch.
func (e *epoch) gpsd(now time.Time, rep gpsdReport) bool {
	switch strings.ToUpper(rep.Class) {
	case "TPV":
		return e.tpv(now, rep)
	case "SKY":
		e.sky(rep)
	}
	return false
}

// tpv closes an epoch for a 2D or 3D fix. Altitude is taken from 3D fixes
// only, preferring altMSL.
func (e *epoch) tpv(now time.Time, rep gpsdReport) bool {
	if rep.Mode < 2 || rep.Lat == nil || rep.Lon == nil {
		if e.fix.Valid {
			e.fix.Valid = false
			e.fix.At = now
			return true
		}
		return false
	}

	e.fix.At = now
	if t, err := time.Parse(time.RFC3339Nano, rep.Time); err == nil {
		e.fix.At = t.UTC()
	}
	e.fix.Lat = degToE7(*rep.Lat)
	e.fix.Lon = degToE7(*rep.Lon)
	e.havePos = true

	if rep.Speed != nil {
		e.fix.SpeedCmS = int32(math.Round(*rep.Speed * 100))
	}
	if rep.Track != nil {
		cd := int32(math.Round(*rep.Track * 100))
		e.fix.CourseCentiDeg = (cd%36000 + 36000) % 36000
	}
	alt := rep.AltMSL
	if alt == nil {
		alt = rep.Alt
	}
	if rep.Mode >= 3 && alt != nil {
		e.fix.AltCm = int32(math.Round(*alt * 100))
		e.fix.AltOK = true
	}
	e.fix.Valid = true
	return true
}

func (e *epoch) sky(rep gpsdReport) {
	if rep.HDOP != nil {
		e.fix.HDOP = *rep.HDOP
	}
	if rep.USat != nil {
		e.fix.Sats = *rep.USat
		return
	}
	if len(rep.Satellites) > 0 {
		n := 0
		for _, s := range rep.Satellites {
			if s.Used {
				n++
			}
		}
		e.fix.Sats = n
	}
}

// runGPSD keeps a gpsd session open until ctx is done, redialling with
// exponential backoff.
func (r *Receiver) runGPSD(ctx context.Context, addr string) {
	log.Printf("gps enabled source=gpsd addr=%s", addr)
	backoff := gpsdMinBackoff
	for ctx.Err() == nil {
		err := r.gpsdSession(ctx, addr)
		if ctx.Err() != nil {
			return
		}
		r.setError(err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, gpsdMaxBackoff)
	}
}

// gpsdSession dials, enables watch mode and decodes reports until the
// connection fails.
func (r *Receiver) gpsdSession(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("gpsd dial %s: %w", addr, err)
	}
	defer conn.Close()

	// Close unblocks the decoder when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := io.WriteString(conn, gpsdWatch); err != nil {
		return fmt.Errorf("gpsd watch: %w", err)
	}
	return r.readGPSD(conn)
}

// readGPSD decodes the report stream. It returns the error that ended it.
func (r *Receiver) readGPSD(rd io.Reader) error {
	dec := json.NewDecoder(rd)
	var ep epoch
	for {
		var rep gpsdReport
		if err := dec.Decode(&rep); err != nil {
			return fmt.Errorf("gpsd read: %w", err)
		}
		if ep.gpsd(time.Now().UTC(), rep) {
			r.publish(ep.fix)
		}
	}
}
