package modbus

import (
	"io"
	"sync"
	"time"

	goserial "github.com/hootrhino/goserial"
)

// RTUSerialTransport is the Transport implementation for Modbus RTU over
// a serial line, backed by goserial. Unlike TCPTransport it
// has no length field to key reads off of, so its read loop polls with a
// timeout sized to T1_5 and reports every read - including ones that
// timed out with no bytes - on Inbound. An empty chunk is how the
// transport tells the registry's RTUFramer "no byte arrived in the last
// T1_5"; RTUFramer.Advance treats that identically to a real silence
// observation.
type RTUSerialTransport struct {
	port io.ReadWriteCloser

	readTimeout time.Duration
	t3_5        time.Duration

	inbound      chan []byte
	disconnected chan error

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
	logger       *SimpleLogger
}

// SetLogger directs the transport's disconnect diagnostics to logger. A
// nil logger discards them.
func (t *RTUSerialTransport) SetLogger(logger *SimpleLogger) {
	t.mu.Lock()
	t.logger = logger
	t.mu.Unlock()
}

// OpenRTUSerial opens cfg's serial port and starts the read pump. The
// read timeout is derived from cfg.BaudRate via CharTime/T1_5; a
// shorter poll interval would busy-loop, a longer one would blur
// inter-character gaps into inter-frame ones. When cfg.RS485Mode is set,
// the port is opened with RS485 RTS-toggling enabled so the driver keys
// the transceiver's direction pin around each transmission instead of
// leaving it permanently enabled.
func OpenRTUSerial(cfg SerialConfig) (*RTUSerialTransport, error) {
	port, err := goserial.Open(&goserial.Config{
		Address:   cfg.Port,
		BaudRate:  cfg.BaudRate,
		DataBits:  cfg.DataBits,
		StopBits:  cfg.StopBits,
		Parity:    cfg.Parity,
		Timeout:   T1_5(CharTime(cfg.BaudRate)),
		RS485:     goserial.RS485Config{Enabled: cfg.RS485Mode},
	})
	if err != nil {
		return nil, &ConnectionLostError{Cause: err}
	}
	ct := CharTime(cfg.BaudRate)
	return NewRTUSerialTransport(port, T1_5(ct), T3_5(ct)), nil
}

// NewRTUSerialTransport wraps an already-open goserial.Port, for callers
// that configure the port themselves (e.g. to enable RS485 RTS signaling
// beyond what SerialConfig exposes). t3_5 is the inter-frame silence
// threshold Write must observe before transmitting, normally
// T3_5(CharTime(baud)).
func NewRTUSerialTransport(port io.ReadWriteCloser, readTimeout, t3_5 time.Duration) *RTUSerialTransport {
	t := &RTUSerialTransport{
		port:         port,
		readTimeout:  readTimeout,
		t3_5:         t3_5,
		inbound:      make(chan []byte, 16),
		disconnected: make(chan error, 1),
	}
	go t.readLoop()
	return t
}

func (t *RTUSerialTransport) readLoop() {
	buf := make([]byte, maxRTUFrameLen)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.mu.Lock()
			t.lastActivity = time.Now()
			t.mu.Unlock()
			t.inbound <- chunk
		}
		if err != nil {
			if isTimeoutErr(err) {
				// No bytes within T1_5: report silence so the registry's
				// framer can detect a T3_5 frame boundary.
				t.inbound <- []byte{}
				continue
			}
			close(t.inbound)
			t.mu.Lock()
			callerClosed := t.closed
			logger := t.logger
			t.mu.Unlock()
			if callerClosed {
				t.disconnected <- nil
			} else {
				logger.Warnf("modbus: rtu serial port lost: %v", err)
				t.disconnected <- &ConnectionLostError{Cause: err}
			}
			close(t.disconnected)
			return
		}
	}
}

// isTimeoutErr reports whether err is a read-deadline-exceeded error
// rather than a genuine line fault. goserial surfaces this the same way
// net.Conn does, via an error satisfying a Timeout() bool method.
func isTimeoutErr(err error) bool {
	type timeoutErr interface{ Timeout() bool }
	te, ok := err.(timeoutErr)
	return ok && te.Timeout()
}

// Write holds off transmission until the line has been idle for t3_5,
// counting both inbound bytes (tracked by readLoop) and this transport's
// own last outbound byte, so back-to-back requests never collide with a
// peer on a shared bus.
func (t *RTUSerialTransport) Write(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return &NotConnectedError{}
	}
	idle := time.Since(t.lastActivity)
	t.mu.Unlock()
	if wait := t.t3_5 - idle; wait > 0 {
		time.Sleep(wait)
	}

	written := 0
	for written < len(data) {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return &ConnectionLostError{Cause: err}
		}
		written += n
	}

	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
	return nil
}

func (t *RTUSerialTransport) Inbound() <-chan []byte     { return t.inbound }
func (t *RTUSerialTransport) Disconnected() <-chan error { return t.disconnected }

func (t *RTUSerialTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.port.Close()
}

func (t *RTUSerialTransport) RemoteAddr() string {
	return "" // a serial line has no peer address
}
