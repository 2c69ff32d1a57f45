//go:build !linux

package gps

import (
	"errors"
	"os"
)

func openSerial(string, int) (*os.File, error) {
	return nil, errors.New("serial receivers need linux")
}
