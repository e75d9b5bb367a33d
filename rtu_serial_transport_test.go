package modbus

import (
	"io"
	"testing"
	"time"
)

// fakePort is an io.ReadWriteCloser double for goserial.Port: writes are
// captured for inspection, and Read blocks until Close unblocks it with
// io.EOF, so readLoop never interferes with a Write-focused test.
type fakePort struct {
	writes chan []byte
	closed chan struct{}
}

func newFakePort() *fakePort {
	return &fakePort{
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (p *fakePort) Read([]byte) (int, error) {
	<-p.closed
	return 0, io.EOF
}

func (p *fakePort) Write(data []byte) (int, error) {
	cp := append([]byte(nil), data...)
	p.writes <- cp
	return len(data), nil
}

func (p *fakePort) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func TestRTUSerialTransportWriteWaitsOutT3_5(t *testing.T) {
	port := newFakePort()
	ct := CharTime(9600)
	transport := NewRTUSerialTransport(port, T1_5(ct), T3_5(ct))
	defer transport.Close()

	transport.mu.Lock()
	transport.lastActivity = time.Now()
	transport.mu.Unlock()

	start := time.Now()
	if err := transport.Write([]byte{0x11, 0x03, 0x00, 0x00, 0x00, 0x01}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < T3_5(ct) {
		t.Fatalf("Write returned after %v, want >= t3.5 (%v) since the last observed byte", elapsed, T3_5(ct))
	}

	select {
	case <-port.writes:
	case <-time.After(time.Second):
		t.Fatal("Write never reached the underlying port")
	}
}

func TestRTUSerialTransportWriteDoesNotWaitWhenAlreadyIdle(t *testing.T) {
	port := newFakePort()
	ct := CharTime(9600)
	transport := NewRTUSerialTransport(port, T1_5(ct), T3_5(ct))
	defer transport.Close()

	transport.mu.Lock()
	transport.lastActivity = time.Now().Add(-time.Second)
	transport.mu.Unlock()

	start := time.Now()
	if err := transport.Write([]byte{0x11, 0x03, 0x00, 0x00, 0x00, 0x01}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if elapsed := time.Since(start); elapsed > T3_5(ct) {
		t.Fatalf("Write waited %v despite the line already being idle past t3.5", elapsed)
	}
}
