package modbus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClientReadHoldingRegistersTCP(t *testing.T) {
	ft := newFakeTransport()
	client := NewClient(ft, ModeTCP, 0, DefaultClientConfig())
	defer client.Close()

	resultCh := make(chan struct {
		regs []uint16
		err  error
	}, 1)
	go func() {
		regs, err := client.ReadHoldingRegisters(context.Background(), 1, 0x006B, 3)
		resultCh <- struct {
			regs []uint16
			err  error
		}{regs, err}
	}()

	frame := <-ft.writes
	txID := uint16(frame[0])<<8 | uint16(frame[1])
	respPDU := []byte{0x03, 0x06, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03}
	mbap, _ := EncodeMBAP(txID, 1, respPDU)
	ft.inbound <- mbap

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	want := []uint16{1, 2, 3}
	if len(res.regs) != len(want) {
		t.Fatalf("got %v, want %v", res.regs, want)
	}
	for i := range want {
		if res.regs[i] != want[i] {
			t.Fatalf("got %v, want %v", res.regs, want)
		}
	}
}

func TestClientReadCoilsTrimsPadding(t *testing.T) {
	ft := newFakeTransport()
	client := NewClient(ft, ModeTCP, 0, DefaultClientConfig())
	defer client.Close()

	resultCh := make(chan struct {
		bits []bool
		err  error
	}, 1)
	go func() {
		bits, err := client.ReadCoils(context.Background(), 1, 0, 5)
		resultCh <- struct {
			bits []bool
			err  error
		}{bits, err}
	}()

	frame := <-ft.writes
	txID := uint16(frame[0])<<8 | uint16(frame[1])
	// Byte count 1, all 8 bits packed, but only the first 5 were requested.
	respPDU := []byte{0x01, 0x01, 0x1F}
	mbap, _ := EncodeMBAP(txID, 1, respPDU)
	ft.inbound <- mbap

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if len(res.bits) != 5 {
		t.Fatalf("got %d bits, want 5", len(res.bits))
	}
}

func TestClientExceptionResponseTranslatesToModbusExceptionError(t *testing.T) {
	ft := newFakeTransport()
	client := NewClient(ft, ModeTCP, 0, DefaultClientConfig())
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := client.ReadHoldingRegisters(context.Background(), 1, 0, 3)
		errCh <- err
	}()

	frame := <-ft.writes
	txID := uint16(frame[0])<<8 | uint16(frame[1])
	excPDU := []byte{FuncCodeReadHoldingRegisters | exceptionFlag, byte(ExcIllegalDataAddress)}
	mbap, _ := EncodeMBAP(txID, 1, excPDU)
	ft.inbound <- mbap

	err := <-errCh
	var exc *ModbusExceptionError
	if !errors.As(err, &exc) {
		t.Fatalf("got %v, want *ModbusExceptionError", err)
	}
	if exc.Code != ExcIllegalDataAddress {
		t.Fatalf("got code %v, want ExcIllegalDataAddress", exc.Code)
	}
}

func TestClientWriteSingleCoilEncodesONOFFValue(t *testing.T) {
	ft := newFakeTransport()
	client := NewClient(ft, ModeTCP, 0, DefaultClientConfig())
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.WriteSingleCoil(context.Background(), 1, 0x0010, true)
	}()

	frame := <-ft.writes
	if frame[len(frame)-2] != 0xFF || frame[len(frame)-1] != 0x00 {
		t.Fatalf("got value bytes % X, want FF 00", frame[len(frame)-2:])
	}

	txID := uint16(frame[0])<<8 | uint16(frame[1])
	respPDU := []byte{0x05, 0x00, 0x10, 0xFF, 0x00}
	mbap, _ := EncodeMBAP(txID, 1, respPDU)
	ft.inbound <- mbap

	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientRequestTimeoutPropagates(t *testing.T) {
	ft := newFakeTransport()
	cfg := DefaultClientConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	client := NewClient(ft, ModeTCP, 0, cfg)
	defer client.Close()

	_, err := client.ReadHoldingRegisters(context.Background(), 1, 0, 1)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("got %v, want *TimeoutError", err)
	}
}
