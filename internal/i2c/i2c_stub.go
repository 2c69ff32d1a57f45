//go:build !linux

package i2c

import "errors"

var errUnsupported = errors.New("i2c: unsupported OS (need linux)")

type Bus struct{}

type Dev struct{}

func Open(string) (*Bus, error) { return nil, errUnsupported }

func (b *Bus) Path() string    { return "" }
func (b *Bus) Stats() Stats    { return Stats{} }
func (b *Bus) Close() error    { return nil }
func (b *Bus) Dev(uint16) *Dev { return &Dev{} }

func (d *Dev) Addr() uint16                 { return 0 }
func (d *Dev) ReadReg(byte, []byte) error   { return errUnsupported }
func (d *Dev) ReadRegU8(byte) (byte, error) { return 0, errUnsupported }
func (d *Dev) WriteReg(byte, byte) error    { return errUnsupported }
