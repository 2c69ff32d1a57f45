package ahrs

import (
	"fmt"
	"log"

	"navcore/internal/fusion"
	"navcore/internal/i2c"
	"navcore/internal/sensors/bmp280"
	"navcore/internal/sensors/hmc5883l"
	"navcore/internal/sensors/icm20948"
)

type HardwareConfig struct {
	Bus      int
	IMUAddr  uint16
	MagAddr  uint16
	BaroAddr uint16
	SampleHz int

	// NeedMag and NeedBaro turn a missing device into an error instead
	// of running without it.
	NeedMag  bool
	NeedBaro bool
}

// Hardware is the sensor set on one I2C bus. Mag and Baro are nil when
// the device did not answer.
type Hardware struct {
	bus  *i2c.Bus
	imu  *icm20948.Device
	Mag  fusion.Magnetometer
	Baro fusion.Barometer
}

func OpenHardware(cfg HardwareConfig) (*Hardware, error) {
	path := i2c.BusPath(cfg.Bus)
	bus, err := i2c.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ahrs: open i2c %s: %w", path, err)
	}

	imu, err := icm20948.New(bus.Dev(cfg.IMUAddr), cfg.SampleHz)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ahrs: imu at 0x%02x: %w", cfg.IMUAddr, err)
	}
	hw := &Hardware{bus: bus, imu: imu}

	if mag, err := hmc5883l.New(bus.Dev(cfg.MagAddr)); err != nil {
		if cfg.NeedMag {
			_ = bus.Close()
			return nil, fmt.Errorf("ahrs: magnetometer at 0x%02x: %w", cfg.MagAddr, err)
		}
		log.Printf("ahrs magnetometer unavailable addr=0x%02x err=%v", cfg.MagAddr, err)
	} else {
		hw.Mag = mag
	}

	if baro, err := bmp280.New(bus.Dev(cfg.BaroAddr)); err != nil {
		if cfg.NeedBaro {
			_ = bus.Close()
			return nil, fmt.Errorf("ahrs: barometer at 0x%02x: %w", cfg.BaroAddr, err)
		}
		log.Printf("ahrs barometer unavailable addr=0x%02x err=%v", cfg.BaroAddr, err)
	} else {
		hw.Baro = baro
	}

	log.Printf("ahrs hardware bus=%s imu=0x%02x mag=%t baro=%t", bus.Path(), cfg.IMUAddr, hw.Mag != nil, hw.Baro != nil)
	return hw, nil
}

// Read satisfies IMU.
func (h *Hardware) Read() (fusion.IMUSample, error) {
	s, err := h.imu.Read()
	if err != nil {
		return fusion.IMUSample{}, err
	}
	return fusion.IMUSample{Gyro: s.Gyro, Accel: s.Accel}, nil
}

func (h *Hardware) BusStats() i2c.Stats {
	return h.bus.Stats()
}

func (h *Hardware) Close() error {
	if h == nil || h.bus == nil {
		return nil
	}
	return h.bus.Close()
}
