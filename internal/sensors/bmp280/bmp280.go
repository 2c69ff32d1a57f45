// Package bmp280 drives a Bosch BMP280 barometer one bus transaction per
// Poll, so a heartbeat never waits on a conversion.
package bmp280

import (
	"encoding/binary"
	"fmt"
	"time"

	"navcore/internal/fusion"
	"navcore/internal/i2c"
)

var sleep = time.Sleep

const (
	addrDefault = 0x77

	regID        = 0xD0
	chipIDBMP280 = 0x58
	regReset     = 0xE0
	resetCmd     = 0xB6

	regCalib00 = 0x88
	calibLen   = 24

	regStatus   = 0xF3
	bitMeasure  = 0x08
	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regPressMsb = 0xF7

	// osrs_t x2, osrs_p x16, forced mode.
	ctrlForced = 0x02<<5 | 0x05<<2 | 0x01
)

type step int

const (
	stepCalibrate step = iota
	stepTrigger
	stepCollect
)

// calib holds the factory trim words dig_T1..3 and dig_P1..9.
type calib struct {
	t1 int64
	t2 int64
	t3 int64
	p  [10]int64 // p[1]..p[9]
}

func parseCalib(b []byte) (calib, error) {
	word := func(i int) uint16 { return binary.LittleEndian.Uint16(b[2*i:]) }
	signed := func(i int) int64 { return int64(int16(word(i))) }

	c := calib{t1: int64(word(0)), t2: signed(1), t3: signed(2)}
	c.p[1] = int64(word(3))
	for i := 2; i <= 9; i++ {
		c.p[i] = signed(i + 2)
	}
	if c.t1 == 0 || c.p[1] == 0 {
		return calib{}, fmt.Errorf("bmp280: calibration invalid (dig_T1=%d dig_P1=%d)", c.t1, c.p[1])
	}
	return c, nil
}

// compensate applies the datasheet's integer formulas. It returns the
// temperature in 0.01 °C and pressure in Pa/256.
func (c calib) compensate(adcT, adcP int64) (centiC int32, pressQ8 uint32) {
	v1 := ((adcT>>3 - c.t1<<1) * c.t2) >> 11
	d := adcT>>4 - c.t1
	v2 := (((d * d) >> 12) * c.t3) >> 14
	tFine := v1 + v2
	centiC = int32((tFine*5 + 128) >> 8)

	a := tFine - 128000
	b := a * a * c.p[6]
	b += (a * c.p[5]) << 17
	b += c.p[4] << 35
	a = (a*a*c.p[3])>>8 + (a*c.p[2])<<12
	a = ((int64(1)<<47 + a) * c.p[1]) >> 33
	if a == 0 {
		return centiC, 0
	}
	p := 1048576 - adcP
	p = ((p<<31 - b) * 3125) / a
	a = (c.p[9] * (p >> 13) * (p >> 13)) >> 25
	b = (c.p[8] * p) >> 19
	p = (p+a+b)>>8 + c.p[7]<<4
	return centiC, uint32(p)
}

type Device struct {
	dev  i2c.RegIO
	next step
	cal  calib
}

func DefaultAddress() uint16 { return addrDefault }

// New checks the chip ID and soft-resets the device. Calibration is read
// by the first Poll.
func New(dev i2c.RegIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bmp280: dev is nil")
	}
	id, err := dev.ReadRegU8(regID)
	if err != nil {
		return nil, fmt.Errorf("bmp280: id read failed: %w", err)
	}
	if id != chipIDBMP280 {
		return nil, fmt.Errorf("bmp280: chip id=0x%02X want 0x%02X", id, chipIDBMP280)
	}
	_ = dev.WriteReg(regReset, resetCmd)
	// Trim words are copied from NVM after reset and read as zero until then.
	sleep(5 * time.Millisecond)
	// No standby, IIR filter off.
	_ = dev.WriteReg(regConfig, 0x00)
	return &Device{dev: dev}, nil
}

// Poll performs the next step: load calibration (until it succeeds),
// start a forced conversion, or collect it. Collection is retried while
// the chip reports a conversion in progress. done receives each completed
// reading.
func (d *Device) Poll(done func(fusion.BaroReading)) error {
	if d == nil {
		return fmt.Errorf("bmp280: device is nil")
	}
	switch d.next {
	case stepCalibrate:
		var buf [calibLen]byte
		if err := d.dev.ReadReg(regCalib00, buf[:]); err != nil {
			return fmt.Errorf("bmp280: read calib failed: %w", err)
		}
		c, err := parseCalib(buf[:])
		if err != nil {
			return err
		}
		d.cal = c
		d.next = stepTrigger

	case stepTrigger:
		if err := d.dev.WriteReg(regCtrlMeas, ctrlForced); err != nil {
			return fmt.Errorf("bmp280: ctrl_meas write failed: %w", err)
		}
		d.next = stepCollect

	case stepCollect:
		status, err := d.dev.ReadRegU8(regStatus)
		if err != nil {
			return fmt.Errorf("bmp280: status read failed: %w", err)
		}
		if status&bitMeasure != 0 {
			return nil
		}
		d.next = stepTrigger
		var raw [6]byte
		if err := d.dev.ReadReg(regPressMsb, raw[:]); err != nil {
			return fmt.Errorf("bmp280: read data failed: %w", err)
		}
		adcP := int64(raw[0])<<12 | int64(raw[1])<<4 | int64(raw[2])>>4
		adcT := int64(raw[3])<<12 | int64(raw[4])<<4 | int64(raw[5])>>4
		centiC, pQ8 := d.cal.compensate(adcT, adcP)
		if done != nil {
			done(fusion.BaroReading{CentiC: centiC, PressureQ8: pQ8})
		}
	}
	return nil
}
