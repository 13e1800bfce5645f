package reactor

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"
)

// Waker is an eventfd that other goroutines signal to interrupt
// [Poller.Wait].
type Waker struct {
	fd int
}

// NewWaker creates a non-blocking eventfd.
func NewWaker() (*Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return &Waker{fd: fd}, nil
}

// Fd returns the eventfd descriptor.
func (w *Waker) Fd() int { return w.fd }

// Wake makes the eventfd readable.  Safe for concurrent use.
func (w *Waker) Wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(w.fd, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			// EAGAIN: the counter is saturated, a wake-up is pending anyway.
			return nil
		case unix.EINTR:
			continue
		default:
			return os.NewSyscallError("eventfd write", err)
		}
	}
}

// Drain resets the counter so the eventfd stops being readable.
func (w *Waker) Drain() error {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return os.NewSyscallError("eventfd read", err)
		}
	}
}

// Close releases the eventfd.
func (w *Waker) Close() error {
	return os.NewSyscallError("close", unix.Close(w.fd))
}
