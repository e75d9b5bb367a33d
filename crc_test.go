package modbus

import "testing"

func TestCRC16KnownVector(t *testing.T) {
	// Read Holding Registers request: unit 1, FC 0x03, addr 0x0000, qty 1.
	// CRC-16/Modbus for this exact byte sequence is a widely published
	// test vector.
	data := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}
	got := CRC16(data)
	want := uint16(0x0A84)
	if got != want {
		t.Fatalf("CRC16(%x) = 0x%04X, want 0x%04X", data, got, want)
	}
}

func TestVerifyCRCRoundTrip(t *testing.T) {
	data := []byte{0x11, 0x03, 0x06, 0xAE, 0x41, 0x56, 0x52, 0x43, 0x40}
	frame := appendCRC(append([]byte{}, data...))
	if !verifyCRC(frame) {
		t.Fatalf("verifyCRC(%x) = false, want true", frame)
	}
	frame[len(frame)-1] ^= 0xFF
	if verifyCRC(frame) {
		t.Fatalf("verifyCRC(%x) = true after corruption, want false", frame)
	}
}

func TestVerifyCRCTooShort(t *testing.T) {
	if verifyCRC([]byte{0x01}) {
		t.Fatal("verifyCRC of a 1-byte slice should be false")
	}
}
