package i2c

import "fmt"

// RegIO is the register-level view every sensor driver is written
// against. *Dev implements it; tests use a map-backed fake.
type RegIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

var _ RegIO = (*Dev)(nil)

// Stats counts ioctl transfers on a bus.
type Stats struct {
	Transfers uint64 `json:"transfers"`
	Failures  uint64 `json:"failures"`
}

// BusPath returns the character device for bus n.
func BusPath(n int) string {
	return fmt.Sprintf("/dev/i2c-%d", n)
}
