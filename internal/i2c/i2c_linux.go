//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Register reads go through the I2C_RDWR ioctl so the address write and
// the read share one repeated-start transaction.

const (
	flagRead  = 0x0001
	ioctlRdwr = 0x0707
	maxAddr   = 0x7F
)

// msg mirrors struct i2c_msg.
type msg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrData mirrors struct i2c_rdwr_ioctl_data.
type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an open /dev/i2c-N. Every sensor on a bus is polled from the
// heartbeat goroutine, so transfers are never concurrent; the counters may
// be read from anywhere.
type Bus struct {
	f    *os.File
	path string

	transfers atomic.Uint64
	failures  atomic.Uint64
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string {
	if b == nil {
		return ""
	}
	return b.path
}

func (b *Bus) Stats() Stats {
	if b == nil {
		return Stats{}
	}
	return Stats{Transfers: b.transfers.Load(), Failures: b.failures.Load()}
}

func (b *Bus) Close() error {
	if b == nil || b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Dev is one 7-bit address on a Bus. Transfer buffers live in the Dev so
// the addresses handed to the kernel point at heap memory.
type Dev struct {
	bus  *Bus
	addr uint16

	msgs [2]msg
	wbuf [2]byte
	rbuf []byte
}

func (b *Bus) Dev(addr uint16) *Dev {
	return &Dev{bus: b, addr: addr}
}

func (d *Dev) Addr() uint16 { return d.addr }

func (d *Dev) ReadReg(reg byte, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if cap(d.rbuf) < len(dst) {
		d.rbuf = make([]byte, len(dst))
	}
	r := d.rbuf[:len(dst)]
	d.wbuf[0] = reg
	d.msgs[0] = msg{addr: d.addr, len: 1, buf: uintptr(unsafe.Pointer(&d.wbuf[0]))}
	d.msgs[1] = msg{addr: d.addr, flags: flagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))}
	if err := d.transfer(2); err != nil {
		return err
	}
	copy(dst, r)
	return nil
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	d.wbuf = [2]byte{reg, value}
	d.msgs[0] = msg{addr: d.addr, len: 2, buf: uintptr(unsafe.Pointer(&d.wbuf[0]))}
	return d.transfer(1)
}

// transfer submits the first n prepared messages.
func (d *Dev) transfer(n int) error {
	if d == nil || d.bus == nil || d.bus.f == nil {
		return errors.New("i2c: device is closed")
	}
	if d.addr == 0 || d.addr > maxAddr {
		return fmt.Errorf("i2c: invalid addr 0x%X", d.addr)
	}

	d.bus.transfers.Add(1)
	data := rdwrData{msgs: uintptr(unsafe.Pointer(&d.msgs[0])), nmsgs: uint32(n)}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		d.bus.failures.Add(1)
		return fmt.Errorf("i2c: %s addr 0x%02X: %w", d.bus.path, d.addr, errno)
	}
	return nil
}
