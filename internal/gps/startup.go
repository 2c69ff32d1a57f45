package gps

import (
	"fmt"
	"log"
)

// Countdown values at which the receiver is reconfigured during startup.
const (
	startupQuietMessages = 980
	startupSetRate       = 960
)

// u-blox message classes.
const (
	ubxClassCFG = 0x06
	ubxCFGRate  = 0x08
)

// quietSentences are switched off on every port so only RMC and GGA remain.
var quietSentences = []string{"GLL", "GSA", "GSV", "VTG"}

// StartupSequence is driven by the heartbeat while the estimator waits for
// GPS lock. countdown runs down to 0.
func (r *Receiver) StartupSequence(countdown int) {
	if r == nil {
		return
	}
	switch countdown {
	case startupQuietMessages:
		for _, id := range quietSentences {
			r.writePort([]byte(pubxRateOff(id)))
		}
	case startupSetRate:
		r.writePort(ubxFrame(ubxClassCFG, ubxCFGRate, cfgRatePayload(200)))
	case 0:
		r.mu.Lock()
		snap := r.Snapshot()
		snap.StartupDone = true
		r.last.Store(snap)
		r.mu.Unlock()
		log.Printf("gps startup sequence done")
	}
}

func (r *Receiver) writePort(b []byte) {
	r.mu.Lock()
	w := r.port
	r.mu.Unlock()
	if w == nil {
		return
	}
	if _, err := w.Write(b); err != nil {
		r.setError(fmt.Sprintf("gps startup write failed: %v", err))
	}
}

// pubxRateOff builds a PUBX,40 sentence that sets the output rate of
// sentence id to zero on all ports.
func pubxRateOff(id string) string {
	payload := "PUBX,40," + id + ",0,0,0,0,0,0"
	return fmt.Sprintf("$%s*%02X\r\n", payload, nmeaChecksum(payload))
}

// cfgRatePayload asks for one solution every measMs milliseconds, aligned
// to GPS time.
func cfgRatePayload(measMs uint16) []byte {
	return []byte{byte(measMs), byte(measMs >> 8), 0x01, 0x00, 0x01, 0x00}
}

// ubxFrame wraps payload with sync chars, length and the 8-bit Fletcher
// checksum over class through payload.
func ubxFrame(class, id byte, payload []byte) []byte {
	out := make([]byte, 0, 8+len(payload))
	out = append(out, 0xB5, 0x62, class, id, byte(len(payload)), byte(len(payload)>>8))
	out = append(out, payload...)
	var a, b byte
	for _, c := range out[2:] {
		a += c
		b += a
	}
	return append(out, a, b)
}
