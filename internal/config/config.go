package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"navcore/internal/dcm"
	"navcore/internal/fusion"
	"navcore/internal/hilsim"
)

type Config struct {
	HeartbeatHz      int    `yaml:"heartbeat_hz"`
	BoardOrientation string `yaml:"board_orientation"`
	AltitudeSource   string `yaml:"altitude_source"`
	YawReference     string `yaml:"yaw_reference"`
	NumOutputs       int    `yaml:"num_outputs"`

	I2C       I2CConfig       `yaml:"i2c"`
	GPS       GPSConfig       `yaml:"gps"`
	HIL       HILConfig       `yaml:"hil"`
	Sim       SimConfig       `yaml:"sim"`
	FlightLog FlightLogConfig `yaml:"flightlog"`
	LED       LEDConfig       `yaml:"led"`
	Web       WebConfig       `yaml:"web"`
}

type I2CConfig struct {
	Bus      int    `yaml:"bus"`
	IMUAddr  uint16 `yaml:"imu_addr"`
	MagAddr  uint16 `yaml:"mag_addr"`
	BaroAddr uint16 `yaml:"baro_addr"`
}

type GPSConfig struct {
	Enable   bool   `yaml:"enable"`
	Source   string `yaml:"source"`
	GPSDAddr string `yaml:"gpsd_addr"`
	Device   string `yaml:"device"`
	Baud     int    `yaml:"baud"`
}

type HILConfig struct {
	Enable  bool     `yaml:"enable"`
	Variant string   `yaml:"variant"`
	Dest    string   `yaml:"dest"`
	Trim    []uint16 `yaml:"trim"`
}

type SimConfig struct {
	Enable       bool          `yaml:"enable"`
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltM         float64       `yaml:"alt_m"`
	RadiusM      float64       `yaml:"radius_m"`
	Period       time.Duration `yaml:"period"`
	Hold         time.Duration `yaml:"hold"`
	GyroOffset   [3]int16      `yaml:"gyro_offset"`
	// Realtime paces the heartbeat with a ticker; otherwise the run goes
	// as fast as the host allows.
	Realtime bool          `yaml:"realtime"`
	Duration time.Duration `yaml:"duration"`
}

type FlightLogConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
	Every  int    `yaml:"every"`
}

type LEDConfig struct {
	Enable bool `yaml:"enable"`
	Pin    int  `yaml:"pin"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

const (
	// Servo pulse units are 0.5 us; 3000 is a centered 1.5 ms pulse.
	defaultTrim     = 3000
	defaultOutputs  = 5
	maxOutputs      = 16
	defaultHILDest  = "127.0.0.1:49000"
	defaultLogPath  = "navcore.db"
	defaultLogEvery = 10
	defaultListen   = ":8080"
)

var lineNoPrefix = regexp.MustCompile(`^line \d+: `)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			msgs := make([]string, 0, len(te.Errors))
			for _, m := range te.Errors {
				msgs = append(msgs, lineNoPrefix.ReplaceAllString(m, ""))
			}
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
		}
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HeartbeatHz == 0 {
		cfg.HeartbeatHz = fusion.DefaultHeartbeatHz
	}
	if cfg.NumOutputs == 0 {
		cfg.NumOutputs = defaultOutputs
	}

	if cfg.I2C.Bus == 0 {
		cfg.I2C.Bus = 1
	}
	if cfg.I2C.IMUAddr == 0 {
		cfg.I2C.IMUAddr = 0x68
	}
	if cfg.I2C.MagAddr == 0 {
		cfg.I2C.MagAddr = 0x1E
	}
	if cfg.I2C.BaroAddr == 0 {
		cfg.I2C.BaroAddr = 0x77
	}

	if cfg.GPS.Source == "" {
		cfg.GPS.Source = "nmea"
	}
	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = 9600
	}

	if cfg.HIL.Variant == "" {
		cfg.HIL.Variant = "fixed"
	}
	if cfg.HIL.Dest == "" {
		cfg.HIL.Dest = defaultHILDest
	}
	if len(cfg.HIL.Trim) == 0 && cfg.NumOutputs > 0 && cfg.NumOutputs <= maxOutputs {
		cfg.HIL.Trim = make([]uint16, cfg.NumOutputs)
		for i := range cfg.HIL.Trim {
			cfg.HIL.Trim[i] = defaultTrim
		}
	}

	// Simulator defaults (safe even if disabled).
	if cfg.Sim.AltM == 0 {
		cfg.Sim.AltM = 100
	}
	if cfg.Sim.RadiusM <= 0 {
		cfg.Sim.RadiusM = 200
	}
	if cfg.Sim.Period <= 0 {
		cfg.Sim.Period = 60 * time.Second
	}
	if cfg.Sim.Hold == 0 {
		cfg.Sim.Hold = 25 * time.Second
	}

	if cfg.FlightLog.Path == "" {
		cfg.FlightLog.Path = defaultLogPath
	}
	if cfg.FlightLog.Every == 0 {
		cfg.FlightLog.Every = defaultLogEvery
	}
	if strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = defaultListen
	}
}

func (cfg *Config) validate() error {
	if cfg.HeartbeatHz <= 0 || cfg.HeartbeatHz%fusion.InitStepHz != 0 {
		return fmt.Errorf("heartbeat_hz must be a multiple of %d", fusion.InitStepHz)
	}
	if _, err := dcm.ParseBoardOrientation(cfg.BoardOrientation); err != nil {
		return fmt.Errorf("board_orientation: %w", err)
	}
	if _, err := fusion.ParseAltitudeSource(cfg.AltitudeSource); err != nil {
		return fmt.Errorf("altitude_source: %w", err)
	}
	if _, err := fusion.ParseYawReference(cfg.YawReference); err != nil {
		return fmt.Errorf("yaw_reference: %w", err)
	}
	if cfg.NumOutputs < 1 || cfg.NumOutputs > maxOutputs {
		return fmt.Errorf("num_outputs must be between 1 and %d", maxOutputs)
	}

	switch strings.ToLower(cfg.GPS.Source) {
	case "nmea", "gpsd":
	default:
		return fmt.Errorf("gps.source must be 'nmea' or 'gpsd'")
	}
	if cfg.GPS.Baud < 0 {
		return fmt.Errorf("gps.baud must be > 0")
	}

	variant, err := hilsim.ParseVariant(cfg.HIL.Variant)
	if err != nil {
		return fmt.Errorf("hil.variant must be 'fixed' or 'variable'")
	}
	if variant == hilsim.Fixed && cfg.NumOutputs > hilsim.FixedChannels {
		return fmt.Errorf("hil.variant 'fixed' supports at most %d outputs", hilsim.FixedChannels)
	}
	if len(cfg.HIL.Trim) != cfg.NumOutputs {
		return fmt.Errorf("hil.trim must have num_outputs (%d) entries", cfg.NumOutputs)
	}

	if cfg.Sim.Enable && cfg.GPS.Enable {
		return fmt.Errorf("sim and gps cannot both be enabled")
	}
	if cfg.Sim.Hold < 0 {
		return fmt.Errorf("sim.hold must be >= 0")
	}
	if cfg.Sim.Duration < 0 {
		return fmt.Errorf("sim.duration must be >= 0")
	}
	if cfg.Sim.Enable && !cfg.Sim.Realtime && cfg.Sim.Duration == 0 {
		return fmt.Errorf("sim.duration is required unless sim.realtime is set")
	}

	if cfg.FlightLog.Every < 0 {
		return fmt.Errorf("flightlog.every must be > 0")
	}
	if cfg.LED.Enable && cfg.LED.Pin <= 0 {
		return fmt.Errorf("led.pin is required when led.enable is true")
	}
	return nil
}

// Fusion converts the startup selections into scheduler options.
func (cfg Config) Fusion() (fusion.Options, error) {
	orient, err := dcm.ParseBoardOrientation(cfg.BoardOrientation)
	if err != nil {
		return fusion.Options{}, err
	}
	alt, err := fusion.ParseAltitudeSource(cfg.AltitudeSource)
	if err != nil {
		return fusion.Options{}, err
	}
	yaw, err := fusion.ParseYawReference(cfg.YawReference)
	if err != nil {
		return fusion.Options{}, err
	}
	opts := fusion.Options{
		HeartbeatHz:    cfg.HeartbeatHz,
		AltitudeSource: alt,
		YawReference:   yaw,
		Orientation:    orient,
		HIL:            cfg.HIL.Enable,
	}
	return opts, opts.Validate()
}

// HILVariant is the parsed hil.variant.
func (cfg Config) HILVariant() hilsim.Variant {
	v, _ := hilsim.ParseVariant(cfg.HIL.Variant)
	return v
}
