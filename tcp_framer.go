package modbus

import (
	"encoding/binary"
	"fmt"
)

// MBAP header layout: transaction id, protocol id, length, unit id.
const (
	mbapHeaderLen  = 7
	protocolIDMBAP = 0x0000
)

// EncodeMBAP wraps pdu in a 7-byte MBAP header addressed to unitID and
// tagged with transactionID.
func EncodeMBAP(transactionID uint16, unitID uint8, pdu []byte) ([]byte, error) {
	if len(pdu) < MinPDULen || len(pdu) > MaxPDULen {
		return nil, fmt.Errorf("modbus: PDU length %d out of range [%d,%d]", len(pdu), MinPDULen, MaxPDULen)
	}
	frame := make([]byte, mbapHeaderLen+len(pdu))
	binary.BigEndian.PutUint16(frame[0:2], transactionID)
	binary.BigEndian.PutUint16(frame[2:4], protocolIDMBAP)
	binary.BigEndian.PutUint16(frame[4:6], uint16(1+len(pdu)))
	frame[6] = unitID
	copy(frame[7:], pdu)
	return frame, nil
}

// TCPFrame is one MBAP-delimited unit produced by the streaming decoder.
type TCPFrame struct {
	TransactionID uint16
	UnitID        uint8
	PDU           []byte
	// Suspect is set when the header's protocol identifier was not
	// 0x0000. The frame is still emitted; callers that
	// care about it can inspect this flag.
	Suspect bool
}

// tcpFramerState is the MBAP decoder's position within the current frame.
type tcpFramerState int

const (
	awaitingHeader tcpFramerState = iota
	awaitingBody
)

// TCPFramer incrementally decodes a byte stream into MBAP frames. It is
// resumable over arbitrary split points: Feed may be called with any
// number of bytes at a time, including zero or one byte, and produces the
// same frames as a single call with the concatenation of all inputs.
type TCPFramer struct {
	state  tcpFramerState
	buf    []byte // bytes accumulated for the frame currently being parsed
	length uint16 // body length (unit id + PDU) once known
	logger *SimpleLogger
}

// NewTCPFramer creates an empty streaming MBAP decoder.
func NewTCPFramer() *TCPFramer {
	return &TCPFramer{state: awaitingHeader}
}

// SetLogger directs the framer's frame-error diagnostics to logger. A nil
// logger discards them.
func (f *TCPFramer) SetLogger(logger *SimpleLogger) {
	f.logger = logger
}

// Feed appends data to the framer's internal buffer and returns every
// complete frame it can extract. An *DecodeError{OversizedFrame} means the
// byte stream is desynchronized and the connection should be dropped;
// after such an error the framer must not be fed further.
func (f *TCPFramer) Feed(data []byte) ([]TCPFrame, error) {
	f.buf = append(f.buf, data...)

	var frames []TCPFrame
	for {
		switch f.state {
		case awaitingHeader:
			if len(f.buf) < mbapHeaderLen {
				return frames, nil
			}
			length := binary.BigEndian.Uint16(f.buf[4:6])
			if length == 0 || int(length) > 1+MaxPDULen {
				f.logger.Warnf("modbus: tcp framer desynchronized, length field %d out of range", length)
				return frames, &DecodeError{OversizedFrame, fmt.Sprintf("length field %d", length)}
			}
			f.length = length
			f.state = awaitingBody

		case awaitingBody:
			total := mbapHeaderLen + int(f.length) - 1
			if len(f.buf) < total {
				return frames, nil
			}
			header := f.buf[:mbapHeaderLen]
			transactionID := binary.BigEndian.Uint16(header[0:2])
			protocolID := binary.BigEndian.Uint16(header[2:4])
			unitID := header[6]
			pdu := make([]byte, total-mbapHeaderLen)
			copy(pdu, f.buf[mbapHeaderLen:total])

			suspect := protocolID != protocolIDMBAP
			if suspect {
				f.logger.Warnf("modbus: tcp frame %d has non-zero protocol id %d", transactionID, protocolID)
			}
			frames = append(frames, TCPFrame{
				TransactionID: transactionID,
				UnitID:        unitID,
				PDU:           pdu,
				Suspect:       suspect,
			})

			f.buf = f.buf[total:]
			f.state = awaitingHeader
		}
	}
}
