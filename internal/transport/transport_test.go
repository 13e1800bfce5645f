package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	rcerr "gorc/internal/errors"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Dial(ctx, "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// acceptOne waits for a connection on a non-blocking listener.
func acceptOne(t *testing.T, ln *Listener) *Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, err := ln.Accept()
		if err == nil {
			return c
		}
		if !rcerr.IsWouldBlock(err) {
			t.Fatalf("accept: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no connection accepted")
	return nil
}

// readSome polls a non-blocking conn until it yields data or fails.
func readSome(t *testing.T, c *Conn, buf []byte) (int, error) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := c.Read(buf)
		if err == nil || !rcerr.IsWouldBlock(rcerr.Classify("read", err)) {
			return n, err
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no data read")
	return 0, nil
}

func TestListener_AcceptWouldBlock(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if _, err := ln.Accept(); !rcerr.IsWouldBlock(err) {
		t.Fatalf("Accept with nothing pending = %v, want would-block", err)
	}
}

func TestListener_AcceptAndExchange(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	conn := acceptOne(t, ln)
	defer conn.Close()

	if conn.RemoteAddr() == nil || conn.RemoteAddr().String() != client.LocalAddr().String() {
		t.Errorf("RemoteAddr = %v, want %v", conn.RemoteAddr(), client.LocalAddr())
	}

	// Nothing sent yet.
	if _, err := conn.Read(make([]byte, 16)); !rcerr.IsWouldBlock(rcerr.Classify("read", err)) {
		t.Fatalf("empty read = %v, want would-block", err)
	}

	client.Write([]byte("ping")) //nolint:errcheck
	buf := make([]byte, 16)
	n, err := readSome(t, conn, buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("got %q, want ping", buf[:n])
	}

	if _, err := conn.Write([]byte("pong")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	n, err = client.Read(buf)
	if err != nil || string(buf[:n]) != "pong" {
		t.Errorf("client read = %q, %v", buf[:n], err)
	}
}

func TestConn_PeerCloseIsEOF(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	conn := acceptOne(t, ln)
	defer conn.Close()

	client.Close()
	if _, err := readSome(t, conn, make([]byte, 8)); err != io.EOF {
		t.Fatalf("read after peer close = %v, want io.EOF", err)
	}
}

// TestConn_LargeWrite checks that Write pushes a payload far larger
// than the socket buffers while the peer drains slowly.
func TestConn_LargeWrite(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	conn := acceptOne(t, ln)
	defer conn.Close()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<18) // 4 MiB
	got := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(io.LimitReader(client, int64(len(payload))))
		got <- data
	}()

	n, err := conn.Write(payload)
	if err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	select {
	case data := <-got:
		if !bytes.Equal(data, payload) {
			t.Errorf("received %d bytes, payload mismatch", len(data))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("peer did not receive the payload")
	}
}

func TestConn_CloseIdempotent(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	conn := acceptOne(t, ln)

	if err := conn.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := conn.Read(make([]byte, 1)); err != rcerr.ErrSessionClosed {
		t.Errorf("read after close = %v", err)
	}
}

func TestDialConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := DialConn(context.Background(), &TCPDialer{Timeout: 2 * time.Second}, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialConn: %v", err)
	}
	defer conn.Close()

	if conn.Fd() < 0 {
		t.Fatalf("Fd = %d", conn.Fd())
	}
	if conn.RemoteAddr().String() != ln.Addr().String() {
		t.Errorf("RemoteAddr = %v, want %v", conn.RemoteAddr(), ln.Addr())
	}

	peer := <-accepted
	defer peer.Close()
	peer.Write([]byte("hi")) //nolint:errcheck

	buf := make([]byte, 4)
	n, err := readSome(t, conn, buf)
	if err != nil || string(buf[:n]) != "hi" {
		t.Errorf("read = %q, %v", buf[:n], err)
	}
}

func TestListen_PortInUse(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	_, err = Listen("tcp", ln.Addr().String())
	if err == nil {
		t.Fatal("second Listen on the same port succeeded")
	}
	if code := rcerr.ListenExit(ln.Addr().String(), err).Code; code != rcerr.ExitPortInUse {
		t.Errorf("exit code = %d, want %d", code, rcerr.ExitPortInUse)
	}
}
