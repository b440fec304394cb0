//go:build linux

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// epollWaitTimeoutMS bounds how long the reader blocks before rechecking ctx.
const epollWaitTimeoutMS = 200

// readInputDevices reads from multiple input devices using epoll.
//
// One goroutine waits on all devices; the kernel wakes it only when a device
// has data. Any device error or hangup is returned, which the caller treats
// as input loss.
func readInputDevices(ctx context.Context, files []*os.File, events chan<- inputEvent) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	// Create epoll instance
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	// Map file descriptors to files for later identification
	fdToFile := make(map[int]*os.File, len(files))

	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN, // Notify when readable
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
		}
	}

	const maxEvents = 32 // Process up to 32 events per epoll_wait call
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize)
	reader := bytes.NewReader(buf)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollWaitTimeoutMS)
		if err != nil {
			// Handle interrupted system call (e.g., SIGINT)
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f := fdToFile[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s", f.Name())
			}

			if _, err := f.Read(buf); err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}

			ev, err := decodeInputEvent(reader, buf)
			if err != nil {
				// Skip malformed events
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
