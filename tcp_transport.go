package modbus

import (
	"crypto/tls"
	"net"
	"sync"
)

// Default Modbus/TCP ports: 502 for plaintext, 802 for the
// TLS-wrapped profile.
const (
	DefaultTCPPort    = 502
	DefaultTCPTLSPort = 802
)

// TCPTransport is the Transport implementation for Modbus/TCP, a thin
// read pump over a net.Conn. It carries no MBAP knowledge
// itself; framing is the registry's TCPFramer.
type TCPTransport struct {
	conn net.Conn

	inbound      chan []byte
	disconnected chan error

	mu     sync.Mutex
	closed bool
	logger *SimpleLogger
}

// SetLogger directs the transport's disconnect diagnostics to logger. A
// nil logger discards them.
func (t *TCPTransport) SetLogger(logger *SimpleLogger) {
	t.mu.Lock()
	t.logger = logger
	t.mu.Unlock()
}

// DialTCP opens a plaintext Modbus/TCP connection to addr (host:port;
// use DefaultTCPPort when the port is conventional).
func DialTCP(addr string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, &ConnectionLostError{Cause: err}
	}
	return NewTCPTransport(conn), nil
}

// DialTCPTLS opens a TLS-wrapped Modbus/TCP connection, conventionally
// to DefaultTCPTLSPort.
func DialTCPTLS(addr string, cfg *tls.Config) (*TCPTransport, error) {
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, &ConnectionLostError{Cause: err}
	}
	return NewTCPTransport(conn), nil
}

// NewTCPTransport wraps an already-connected net.Conn (plaintext or TLS)
// as a Transport and starts its read pump.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	t := &TCPTransport{
		conn:         conn,
		inbound:      make(chan []byte, 16),
		disconnected: make(chan error, 1),
	}
	go t.readLoop()
	return t
}

func (t *TCPTransport) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.inbound <- chunk
		}
		if err != nil {
			close(t.inbound)
			t.mu.Lock()
			callerClosed := t.closed
			logger := t.logger
			t.mu.Unlock()
			if callerClosed {
				t.disconnected <- nil
			} else {
				logger.Warnf("modbus: tcp connection to %s lost: %v", t.RemoteAddr(), err)
				t.disconnected <- &ConnectionLostError{Cause: err}
			}
			close(t.disconnected)
			return
		}
	}
}

func (t *TCPTransport) Write(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return &NotConnectedError{}
	}
	t.mu.Unlock()

	written := 0
	for written < len(data) {
		n, err := t.conn.Write(data[written:])
		if err != nil {
			return &ConnectionLostError{Cause: err}
		}
		written += n
	}
	return nil
}

func (t *TCPTransport) Inbound() <-chan []byte    { return t.inbound }
func (t *TCPTransport) Disconnected() <-chan error { return t.disconnected }

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *TCPTransport) RemoteAddr() string {
	if t.conn == nil || t.conn.RemoteAddr() == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}
