package reactor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"gorc/util"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestTokenEncoding(t *testing.T) {
	for _, token := range []uint64{ListenerToken, 1, 42, math.MaxUint32, math.MaxUint32 + 1, 1<<40 + 7, WakerToken} {
		ev := encode(token, unix.EPOLLIN)
		got := decode(ev)
		assert.Equal(t, token, got.Token)
		assert.True(t, got.Readable)
		assert.False(t, got.Hangup)
	}
}

func TestPoller_ReadableEvent(t *testing.T) {
	p, err := NewPoller(8)
	require.NoError(t, err)
	defer p.Close()

	a, b := socketPair(t)
	const token = uint64(1<<33 + 3)
	require.NoError(t, p.Add(a, token))

	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	events, err := p.Wait(nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, token, events[0].Token)
	assert.True(t, events[0].Readable)
}

func TestPoller_PausedInterestStillReportsHangup(t *testing.T) {
	p, err := NewPoller(8)
	require.NoError(t, err)
	defer p.Close()
	w, err := NewWaker()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, p.Add(w.Fd(), WakerToken))

	a, b := socketPair(t)
	require.NoError(t, p.Add(a, 5))
	require.NoError(t, p.Modify(a, 5, false))

	// Pending data must not surface while paused.
	_, err = unix.Write(b, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Wake())

	events, err := p.Wait(nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, WakerToken, events[0].Token)
	require.NoError(t, w.Drain())

	// A socket shut down in both directions reports a hang-up.
	unix.Shutdown(a, unix.SHUT_RDWR)
	events, err = p.Wait(nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(5), events[0].Token)
	assert.True(t, events[0].Hangup)
	assert.False(t, events[0].Readable)

	// Resuming brings read readiness back.
	require.NoError(t, p.Modify(a, 5, true))
	events, err = p.Wait(nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.True(t, events[0].Readable)
}

func TestPoller_PausedInterestIgnoresPeerHalfClose(t *testing.T) {
	p, err := NewPoller(8)
	require.NoError(t, err)
	defer p.Close()
	w, err := NewWaker()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, p.Add(w.Fd(), WakerToken))

	a, b := socketPair(t)
	require.NoError(t, p.Add(a, 9))
	require.NoError(t, p.Modify(a, 9, false))

	// An orderly FIN from the peer is not a hang-up while paused.
	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))
	require.NoError(t, w.Wake())
	events, err := p.Wait(nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, WakerToken, events[0].Token)
	require.NoError(t, w.Drain())

	// Resuming surfaces it as readable end-of-stream.
	require.NoError(t, p.Modify(a, 9, true))
	events, err = p.Wait(nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(9), events[0].Token)
	assert.True(t, events[0].Readable)
}

func TestPoller_RemoveIgnoresUnknown(t *testing.T) {
	p, err := NewPoller(0)
	require.NoError(t, err)
	defer p.Close()

	a, _ := socketPair(t)
	assert.NoError(t, p.Remove(a))
	require.NoError(t, p.Add(a, 1))
	assert.NoError(t, p.Remove(a))
	assert.NoError(t, p.Remove(a))
}

func TestWaker_DrainClearsReadiness(t *testing.T) {
	w, err := NewWaker()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Wake())
	require.NoError(t, w.Wake())
	require.NoError(t, w.Drain())

	var buf [8]byte
	_, err = unix.Read(w.Fd(), buf[:])
	assert.Equal(t, unix.EAGAIN, err)
}

type recordingHandler struct {
	events []Event
	wakes  int
	stopOn uint64
}

func (h *recordingHandler) HandleEvent(ev Event) error {
	h.events = append(h.events, ev)
	if ev.Token == h.stopOn {
		return ErrStop
	}
	return nil
}

func (h *recordingHandler) HandleWake() error {
	h.wakes++
	return nil
}

func TestLoop_DispatchesAndStops(t *testing.T) {
	l, err := NewLoop(util.NewLogger(0))
	require.NoError(t, err)
	defer l.Close()

	a, b := socketPair(t)
	require.NoError(t, l.Poller().Add(a, 9))
	_, err = unix.Write(b, []byte("go"))
	require.NoError(t, err)

	h := &recordingHandler{stopOn: 9}
	require.NoError(t, l.Run(context.Background(), h))
	require.Len(t, h.events, 1)
	assert.Equal(t, uint64(9), h.events[0].Token)
}

func TestLoop_WakeCallsHandler(t *testing.T) {
	l, err := NewLoop(util.NewLogger(0))
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	h := &wakeThenCancel{cancel: cancel}
	go l.Wake()

	err = l.Run(ctx, h)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.GreaterOrEqual(t, h.wakes, 1)
}

type wakeThenCancel struct {
	wakes  int
	cancel context.CancelFunc
}

func (h *wakeThenCancel) HandleEvent(Event) error { return nil }

func (h *wakeThenCancel) HandleWake() error {
	h.wakes++
	h.cancel()
	return nil
}

func TestLoop_ContextCancelUnblocks(t *testing.T) {
	l, err := NewLoop(util.NewLogger(0))
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, &recordingHandler{stopOn: 1}) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
