package hmc5883l

import (
	"fmt"

	"navcore/internal/fixmath"
	"navcore/internal/i2c"
)

// HMC5883L magnetometer in single-measurement mode.
//
// Each Read collects the measurement started by the previous call and
// starts the next one, so a reading is delivered one call late and the
// bus is never held waiting for a conversion.

const (
	addrDefault = 0x1E

	regConfigA = 0x00
	regConfigB = 0x01
	regMode    = 0x02
	regDataX   = 0x03 // X, Z, Y big-endian
	regIDA     = 0x0A

	configA8Avg15Hz = 0x70
	configBGain1090 = 0x20
	modeSingle      = 0x01

	// overflow is what a saturated axis reads back as.
	overflow = -4096
)

type Device struct {
	dev        i2c.RegIO
	configured bool
	pending    bool
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev i2c.RegIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("hmc5883l: dev is nil")
	}
	var id [3]byte
	if err := dev.ReadReg(regIDA, id[:]); err != nil {
		return nil, fmt.Errorf("hmc5883l: id read failed: %w", err)
	}
	if string(id[:]) != "H43" {
		return nil, fmt.Errorf("hmc5883l: id=%q want \"H43\"", id[:])
	}
	return &Device{dev: dev}, nil
}

// Read delivers the previous measurement to done, if there is one, and
// starts another.
func (d *Device) Read(done func(fixmath.Vector)) error {
	if d == nil {
		return fmt.Errorf("hmc5883l: device is nil")
	}
	if !d.configured {
		if err := d.configure(); err != nil {
			return err
		}
		d.configured = true
		return d.trigger()
	}

	if d.pending {
		d.pending = false
		v, err := d.collect()
		if err != nil {
			// Leave the chip measuring so the next call can recover.
			_ = d.trigger()
			return err
		}
		if terr := d.trigger(); terr != nil {
			return terr
		}
		if done != nil {
			done(v)
		}
		return nil
	}
	return d.trigger()
}

func (d *Device) configure() error {
	if err := d.dev.WriteReg(regConfigA, configA8Avg15Hz); err != nil {
		return fmt.Errorf("hmc5883l: config A failed: %w", err)
	}
	if err := d.dev.WriteReg(regConfigB, configBGain1090); err != nil {
		return fmt.Errorf("hmc5883l: config B failed: %w", err)
	}
	return nil
}

func (d *Device) trigger() error {
	if err := d.dev.WriteReg(regMode, modeSingle); err != nil {
		return fmt.Errorf("hmc5883l: start measurement failed: %w", err)
	}
	d.pending = true
	return nil
}

func (d *Device) collect() (fixmath.Vector, error) {
	var buf [6]byte
	if err := d.dev.ReadReg(regDataX, buf[:]); err != nil {
		return fixmath.Vector{}, fmt.Errorf("hmc5883l: read data failed: %w", err)
	}
	x := int16(buf[0])<<8 | int16(buf[1])
	z := int16(buf[2])<<8 | int16(buf[3])
	y := int16(buf[4])<<8 | int16(buf[5])
	if x == overflow || y == overflow || z == overflow {
		return fixmath.Vector{}, fmt.Errorf("hmc5883l: measurement overflow")
	}
	return fixmath.Vector{x, y, z}, nil
}
