// Package hilsim builds the servo output frames a flight simulator reads
// back during hardware-in-the-loop runs.
package hilsim

import (
	"fmt"
	"strings"
)

const (
	// FixedChannels is the channel count of the legacy frame.
	FixedChannels = 8
	// FixedFrameLen is sync, 8 channels and checksum.
	FixedFrameLen = 2 + 2*FixedChannels + 2
	// MaxChannels is what the count byte of a variable frame can describe.
	MaxChannels = 255
)

type Variant int

const (
	Fixed Variant = iota
	Variable
)

func (v Variant) String() string {
	switch v {
	case Fixed:
		return "fixed"
	case Variable:
		return "variable"
	default:
		return "unknown"
	}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed":
		return Fixed, nil
	case "variable":
		return Variable, nil
	default:
		return Fixed, fmt.Errorf("hilsim: unknown frame variant %q", s)
	}
}

// FixedFrame lays out the first eight channels big-endian after 0xFF 0xEE.
// Channels beyond the slice are sent as 0; extra channels are dropped.
func FixedFrame(ch []uint16) [FixedFrameLen]byte {
	var f [FixedFrameLen]byte
	f[0], f[1] = 0xFF, 0xEE
	for i := 0; i < FixedChannels && i < len(ch); i++ {
		f[2+2*i] = byte(ch[i] >> 8)
		f[3+2*i] = byte(ch[i])
	}
	f[FixedFrameLen-2], f[FixedFrameLen-1] = checksum(f[2 : FixedFrameLen-2])
	return f
}

// VariableFrame is 0xFE 0xEF, a channel count, the channels big-endian and
// a checksum over the count byte through the last channel.
func VariableFrame(ch []uint16) ([]byte, error) {
	if len(ch) == 0 || len(ch) > MaxChannels {
		return nil, fmt.Errorf("hilsim: %d channels out of range", len(ch))
	}
	f := make([]byte, 0, 3+2*len(ch)+2)
	f = append(f, 0xFE, 0xEF, byte(len(ch)))
	for _, v := range ch {
		f = append(f, byte(v>>8), byte(v))
	}
	a, b := checksum(f[2:])
	return append(f, a, b), nil
}

// checksum is the 8-bit Fletcher pair: A sums the bytes, B sums A.
func checksum(p []byte) (byte, byte) {
	var a, b byte
	for _, c := range p {
		a += c
		b += a
	}
	return a, b
}
