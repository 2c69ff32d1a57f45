// Package icm20948 reads the ICM-20948 accelerometer and gyro.
//
// Gyro is reported in the estimator's Q12 rad/s, accel as raw counts
// (8192 per g at the 4 g range). Axes are the chip's own; board mounting
// is corrected by the caller.
package icm20948

import (
	"encoding/binary"
	"fmt"
	"time"

	"navcore/internal/fixmath"
	"navcore/internal/i2c"
)

var sleep = time.Sleep

const (
	addrDefault = 0x68

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regPwrMgmt1   = 0x06
	bitReset      = 0x80
	clkAuto       = 0x01
	regIntEnable  = 0x10
	regAccelXoutH = 0x2D // accel then gyro, 12 bytes
	burstLen      = 12

	// Bank 2.
	bank2           = 2
	regGyroSmplrt   = 0x00
	regGyroConfig   = 0x01
	regAccelSmplrt2 = 0x11
	regAccelConfig  = 0x14

	fsGyro250dps = 0x00
	fsAccel4g    = 0x02

	// baseRateHz is the internal sample rate the dividers count from.
	baseRateHz = 1125

	// gyroQ12Mult converts 250 dps full-scale counts to Q12 rad/s in Q16:
	// (250/32768) * (pi/180) * 4096 * 65536.
	gyroQ12Mult = 35744

	// AccelOneG is the accel reading for 1 g.
	AccelOneG = 8192
)

// regWrite is one step of the power-up sequence.
type regWrite struct {
	bank   byte
	reg    byte
	val    byte
	settle time.Duration
	name   string
}

func initSequence(div byte) []regWrite {
	return []regWrite{
		{0, regIntEnable, 0x00, 0, "int enable"},
		{0, regPwrMgmt1, bitReset, 100 * time.Millisecond, "reset"},
		{0, regPwrMgmt1, clkAuto, 10 * time.Millisecond, "wake"},
		{bank2, regGyroSmplrt, div, 0, "gyro rate"},
		{bank2, regAccelSmplrt2, div, 0, "accel rate"},
		{bank2, regGyroConfig, fsGyro250dps, 0, "gyro range"},
		{bank2, regAccelConfig, fsAccel4g, 0, "accel range"},
	}
}

type Sample struct {
	Accel fixmath.Vector
	Gyro  fixmath.Vector
}

type Device struct {
	dev  i2c.RegIO
	bank byte
}

func DefaultAddress() uint16 { return addrDefault }

// New probes the chip and configures both sensors for sampleHz output.
func New(dev i2c.RegIO, sampleHz int) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	if sampleHz <= 0 || sampleHz > baseRateHz {
		return nil, fmt.Errorf("icm20948: sample rate %d Hz out of range", sampleHz)
	}

	who, err := dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	// Bank unknown until the first select.
	d := &Device{dev: dev, bank: 0xFF}
	for _, w := range initSequence(byte(SampleDivider(sampleHz))) {
		if err := d.selectBank(w.bank); err != nil {
			return nil, err
		}
		if err := dev.WriteReg(w.reg, w.val); err != nil {
			return nil, fmt.Errorf("icm20948: %s write failed: %w", w.name, err)
		}
		if w.reg == regPwrMgmt1 && w.val&bitReset != 0 {
			d.bank = 0
		}
		if w.settle > 0 {
			sleep(w.settle)
		}
	}
	if err := d.selectBank(0); err != nil {
		return nil, err
	}
	return d, nil
}

// SampleDivider returns the rate divider for the closest rate at or above
// sampleHz.
func SampleDivider(sampleHz int) int {
	return max(0, min(255, baseRateHz/sampleHz-1))
}

func (d *Device) selectBank(bank byte) error {
	if d.bank == bank {
		return nil
	}
	if err := d.dev.WriteReg(regBankSel, bank<<4); err != nil {
		return fmt.Errorf("icm20948: select bank %d failed: %w", bank, err)
	}
	d.bank = bank
	return nil
}

// Read burst-reads one accel and gyro sample.
func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.selectBank(0); err != nil {
		return Sample{}, err
	}
	var buf [burstLen]byte
	if err := d.dev.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("icm20948: burst read failed: %w", err)
	}

	word := func(i int) int16 { return int16(binary.BigEndian.Uint16(buf[2*i:])) }
	var s Sample
	for axis := range s.Accel {
		s.Accel[axis] = word(axis)
		s.Gyro[axis] = GyroQ12(word(3 + axis))
	}
	return s, nil
}

// GyroQ12 converts a 250 dps full-scale gyro count to Q12 rad/s.
func GyroQ12(raw int16) int16 {
	return fixmath.Sat16((int32(raw) * gyroQ12Mult) >> 16)
}
