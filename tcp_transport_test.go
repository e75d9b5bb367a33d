package modbus

import (
	"net"
	"testing"
	"time"
)

func TestTCPTransportWriteAndInbound(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	transport := NewTCPTransport(client)
	defer transport.Close()

	want := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}
	go func() {
		if err := transport.Write(want); err != nil {
			t.Errorf("Write: %v", err)
		}
	}()

	buf := make([]byte, len(want))
	if _, err := server.Read(buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("got % X, want % X", buf, want)
		}
	}

	go server.Write([]byte{0xAA, 0xBB})
	select {
	case chunk := <-transport.Inbound():
		if len(chunk) != 2 || chunk[0] != 0xAA || chunk[1] != 0xBB {
			t.Fatalf("got % X, want AA BB", chunk)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound data")
	}
}

func TestTCPTransportCloseReportsNilDisconnect(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	transport := NewTCPTransport(client)
	if err := transport.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-transport.Disconnected():
		if err != nil {
			t.Fatalf("got %v, want nil for a caller-initiated close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect notification")
	}
}
