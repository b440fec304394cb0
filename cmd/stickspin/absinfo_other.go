//go:build !linux

package main

import (
	"errors"
	"os"
)

func probeAxisRange(_ *os.File, _ uint16) (axisRange, error) {
	return axisRange{}, errors.ErrUnsupported
}

func grabDevice(_ *os.File, _ bool) error {
	return errors.ErrUnsupported
}
