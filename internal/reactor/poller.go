// Package reactor is a single-threaded readiness loop over epoll.
//
// Every registered descriptor carries a 64-bit token.  Token 0 belongs
// to the listening socket and [WakerToken] to the eventfd used to wake
// the loop from other goroutines; sessions use everything in between.
// Registrations are level-triggered.
package reactor

import (
	"math"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// ListenerToken identifies the listening socket.
	ListenerToken uint64 = 0
	// WakerToken identifies the loop's eventfd.
	WakerToken uint64 = math.MaxUint64
)

const (
	readInterest = unix.EPOLLIN | unix.EPOLLRDHUP
	hangupEvents = unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLRDHUP
)

// Event is one readiness notification.
type Event struct {
	Token    uint64
	Readable bool
	// Hangup is set when the peer closed or the socket errored.  It is
	// reported even while read interest is paused.
	Hangup bool
}

// Poller wraps an epoll instance.
type Poller struct {
	epfd int
	raw  []unix.EpollEvent
}

// NewPoller creates an epoll instance returning at most capacity
// events per wake-up.
func NewPoller(capacity int) (*Poller, error) {
	if capacity <= 0 {
		capacity = 128
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &Poller{epfd: fd, raw: make([]unix.EpollEvent, capacity)}, nil
}

// Add registers fd for read readiness under token.
func (p *Poller) Add(fd int, token uint64) error {
	ev := encode(token, readInterest)
	return os.NewSyscallError("epoll_ctl add", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev))
}

// Modify turns read interest for fd on or off.  With readable false
// the descriptor stays registered and only EPOLLHUP and EPOLLERR are
// reported; a peer that merely stopped sending is seen on resume.
func (p *Poller) Modify(fd int, token uint64, readable bool) error {
	var events uint32
	if readable {
		events = readInterest
	}
	ev := encode(token, events)
	return os.NewSyscallError("epoll_ctl mod", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev))
}

// Remove deregisters fd.  Descriptors that are not registered are
// ignored.
func (p *Poller) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return os.NewSyscallError("epoll_ctl del", err)
}

// Wait blocks until at least one registered descriptor is ready and
// appends every event of that wake-up to dst.  Interrupted waits are
// retried.
func (p *Poller) Wait(dst []Event) ([]Event, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.raw, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return dst, os.NewSyscallError("epoll_wait", err)
		}
		for i := 0; i < n; i++ {
			dst = append(dst, decode(p.raw[i]))
		}
		return dst, nil
	}
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.epfd))
}

// encode packs token into the user data of an epoll event.  The low
// half travels in Fd and the high half in Pad.
func encode(token uint64, events uint32) unix.EpollEvent {
	return unix.EpollEvent{
		Events: events,
		Fd:     int32(uint32(token)),
		Pad:    int32(uint32(token >> 32)),
	}
}

func decode(ev unix.EpollEvent) Event {
	return Event{
		Token:    uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32,
		Readable: ev.Events&unix.EPOLLIN != 0,
		Hangup:   ev.Events&hangupEvents != 0,
	}
}
