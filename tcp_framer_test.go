package modbus

import (
	"errors"
	"reflect"
	"testing"
)

func TestTCPFramerSingleFeed(t *testing.T) {
	pdu := []byte{0x03, 0x02, 0x00, 0x0A}
	frame, err := EncodeMBAP(7, 1, pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f := NewTCPFramer()
	frames, err := f.Feed(frame)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].TransactionID != 7 || frames[0].UnitID != 1 || !reflect.DeepEqual(frames[0].PDU, pdu) {
		t.Fatalf("got %+v", frames[0])
	}
}

func TestTCPFramerByteAtATime(t *testing.T) {
	pdu := []byte{0x03, 0x02, 0x00, 0x0A}
	frame, err := EncodeMBAP(42, 3, pdu)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f := NewTCPFramer()
	var got []TCPFrame
	for _, b := range frame {
		frames, err := f.Feed([]byte{b})
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		got = append(got, frames...)
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames, want 1", len(got))
	}
	if got[0].TransactionID != 42 || !reflect.DeepEqual(got[0].PDU, pdu) {
		t.Fatalf("got %+v", got[0])
	}
}

func TestTCPFramerMultipleFramesInOneFeed(t *testing.T) {
	pdu := []byte{0x03, 0x02, 0x00, 0x0A}
	f1, _ := EncodeMBAP(1, 1, pdu)
	f2, _ := EncodeMBAP(2, 1, pdu)
	f := NewTCPFramer()
	frames, err := f.Feed(append(append([]byte{}, f1...), f2...))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].TransactionID != 1 || frames[1].TransactionID != 2 {
		t.Fatalf("got transaction ids %d, %d", frames[0].TransactionID, frames[1].TransactionID)
	}
}

func TestTCPFramerOversizedLengthField(t *testing.T) {
	header := []byte{0x00, 0x01, 0x00, 0x00, 0xFF, 0xFF, 0x01}
	f := NewTCPFramer()
	_, err := f.Feed(header)
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != OversizedFrame {
		t.Fatalf("got %v, want OversizedFrame", err)
	}
}

func TestTCPFramerSuspectProtocolID(t *testing.T) {
	pdu := []byte{0x03, 0x02, 0x00, 0x0A}
	frame, _ := EncodeMBAP(1, 1, pdu)
	frame[2] = 0x00
	frame[3] = 0x01 // non-zero protocol id
	f := NewTCPFramer()
	frames, err := f.Feed(frame)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(frames) != 1 || !frames[0].Suspect {
		t.Fatalf("got %+v, want one Suspect frame", frames)
	}
}
