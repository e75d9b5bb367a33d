package modbus

import (
	"context"
	"testing"
	"time"

	mbserver "github.com/hootrhino/mbserver"
	"github.com/hootrhino/mbserver/store"
)

// TestClientAgainstMBServer exercises the Client end to end against a real
// Modbus/TCP server implementation, rather than the fakeTransport used
// elsewhere in this package.
func TestClientAgainstMBServer(t *testing.T) {
	server := mbserver.NewServer(store.NewInMemoryStore(), 1)
	server.SetErrorHandler(func(err error) { t.Logf("mbserver: %v", err) })

	holding := make([]uint16, 10)
	for i := range holding {
		holding[i] = 0xABCD
	}
	if err := server.SetHoldingRegisters(holding); err != nil {
		t.Fatalf("SetHoldingRegisters: %v", err)
	}

	const addr = "127.0.0.1:15020"
	if err := server.Start(addr); err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	defer server.Stop()

	var client *Client
	var err error
	for i := 0; i < 20; i++ {
		client, err = NewTCPClient(addr, DefaultClientConfig())
		if err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("NewTCPClient: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	regs, err := client.ReadHoldingRegisters(ctx, 1, 0, 4)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters: %v", err)
	}
	for i, v := range regs {
		if v != 0xABCD {
			t.Fatalf("register %d = 0x%04X, want 0xABCD", i, v)
		}
	}
}
