//go:build linux

package main

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// struct input_absinfo from <linux/input.h>
type inputAbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

const (
	// _IOR('E', 0x40 + abs, struct input_absinfo)
	eviocgabsBase = 0x80000000 | (uint(unsafe.Sizeof(inputAbsInfo{})) << 16) | ('E' << 8) | 0x40

	// _IOW('E', 0x90, int)
	eviocgrab = 0x40044590
)

// probeAxisRange reads the kernel-reported range of an absolute axis.
func probeAxisRange(f *os.File, code uint16) (axisRange, error) {
	var info inputAbsInfo
	req := eviocgabsBase + uint(code)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uintptr(req), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return axisRange{}, fmt.Errorf("EVIOCGABS %s axis 0x%02x: %w", f.Name(), code, errno)
	}
	if info.Maximum <= info.Minimum {
		return axisRange{}, fmt.Errorf("EVIOCGABS %s axis 0x%02x: empty range [%d, %d]", f.Name(), code, info.Minimum, info.Maximum)
	}
	return axisRange{Min: info.Minimum, Max: info.Maximum}, nil
}

// grabDevice toggles exclusive access to the device.
func grabDevice(f *os.File, grab bool) error {
	v := 0
	if grab {
		v = 1
	}
	if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, v); err != nil {
		return fmt.Errorf("EVIOCGRAB %s: %w", f.Name(), err)
	}
	return nil
}
