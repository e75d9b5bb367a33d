package modbus

import "time"

// RTU frame limits: unit id (1) + PDU (<=253) + CRC (2).
const (
	minRTUFrameLen = 4
	maxRTUFrameLen = 256
)

// CharTime is the duration of one serial "character": 11 bit times (1
// start + 8 data + 1 parity + 1 stop; no-parity lines use the same width
// for timing purposes).
func CharTime(baud int) time.Duration {
	if baud <= 0 {
		baud = 9600
	}
	return 11 * time.Second / time.Duration(baud)
}

// T1_5 and T3_5 derive the inter-character and inter-frame silence
// thresholds from a character time. At >=19200 baud (char time <=
// ~573us) the Modbus serial line standard fixes these to 750us/1.75ms
// rather than letting them shrink further.
func T1_5(charTime time.Duration) time.Duration {
	if charTime <= CharTime(19200) {
		return 750 * time.Microsecond
	}
	return charTime + charTime/2
}

func T3_5(charTime time.Duration) time.Duration {
	if charTime <= CharTime(19200) {
		return 1750 * time.Microsecond
	}
	return charTime*3 + charTime/2
}

// RTUFrame is one silence-delimited, CRC-verified unit produced by
// RTUFramer.
type RTUFrame struct {
	UnitID uint8
	PDU    []byte
}

// EncodeRTU wraps pdu with a unit id prefix and a little-endian CRC-16
// trailer.
func EncodeRTU(unitID uint8, pdu []byte) ([]byte, error) {
	if len(pdu) < MinPDULen || len(pdu) > MaxPDULen {
		return nil, &InvalidArgumentError{0, "PDU length out of range"}
	}
	frame := make([]byte, 0, 1+len(pdu)+2)
	frame = append(frame, unitID)
	frame = append(frame, pdu...)
	return appendCRC(frame), nil
}

type rtuFramerState int

const (
	rtuIdle rtuFramerState = iota
	rtuReceiving
)

// RTUFramer detects RTU frame boundaries from inter-character silence
// rather than a length field. The transport drives it by calling
// Advance once per read: with the bytes just received (possibly none, if
// the read timed out waiting for t3.5 of silence) and the time those
// bytes were observed. Advance returns a completed frame when a silence
// of >= t3.5 closes out a non-empty buffer, or as soon as the buffer
// reaches the maximum RTU frame length of 256 bytes.
type RTUFramer struct {
	t1_5, t3_5 time.Duration

	state    rtuFramerState
	buf      []byte
	lastByte time.Time
	logger   *SimpleLogger
}

// NewRTUFramer creates a framer whose timing thresholds are derived from
// baud.
func NewRTUFramer(baud int) *RTUFramer {
	ct := CharTime(baud)
	return &RTUFramer{t1_5: T1_5(ct), t3_5: T3_5(ct), state: rtuIdle}
}

// SetLogger directs the framer's frame-error and discard diagnostics to
// logger. A nil logger discards them.
func (f *RTUFramer) SetLogger(logger *SimpleLogger) {
	f.logger = logger
}

// T1_5 and T3_5 report the framer's configured thresholds, so a transport
// can size its read timeout around them.
func (f *RTUFramer) T1_5() time.Duration { return f.t1_5 }
func (f *RTUFramer) T3_5() time.Duration { return f.t3_5 }

// Advance feeds newly-arrived bytes (data may be empty, meaning "no bytes
// arrived before the read timed out") observed at time now. It returns a
// completed frame when a preceding silence of >= t3.5 closes a
// non-empty buffer; a *DecodeError when that frame fails CRC or minimum
// length; and (nil, nil) while still accumulating or when idle.
func (f *RTUFramer) Advance(data []byte, now time.Time) (*RTUFrame, error) {
	if f.state == rtuReceiving {
		gap := now.Sub(f.lastByte)
		switch {
		case gap >= f.t3_5:
			frame, err := f.finish()
			f.startOrIdle(data, now)
			return frame, err
		case gap >= f.t1_5 && len(data) > 0:
			// Malformed: a gap long enough to break framing but too
			// short to be a deliberate inter-frame silence, followed by
			// more bytes. Discard. An empty chunk in this band is only a
			// silence report, so the buffer is kept until t3.5 elapses.
			f.logger.Warnf("modbus: discarding %d-byte rtu fragment after a %v mid-frame gap", len(f.buf), gap)
			f.buf = nil
			f.state = rtuIdle
			f.startOrIdle(data, now)
			return nil, nil
		}
	}

	if len(data) == 0 {
		return nil, nil
	}
	if f.state == rtuIdle {
		f.startOrIdle(data, now)
		return nil, nil
	}

	f.buf = append(f.buf, data...)
	f.lastByte = now
	if len(f.buf) >= maxRTUFrameLen {
		frame, err := f.finish()
		f.state = rtuIdle
		return frame, err
	}
	return nil, nil
}

func (f *RTUFramer) startOrIdle(data []byte, now time.Time) {
	if len(data) == 0 {
		f.state = rtuIdle
		return
	}
	f.buf = append([]byte(nil), data...)
	f.lastByte = now
	f.state = rtuReceiving
}

// finish validates and unwraps the accumulated buffer, leaving it to the
// caller to reset framer state.
func (f *RTUFramer) finish() (*RTUFrame, error) {
	buf := f.buf
	f.buf = nil
	if len(buf) < minRTUFrameLen {
		f.logger.Warnf("modbus: rtu frame truncated at %d bytes", len(buf))
		return nil, &DecodeError{Truncated, "frame shorter than minimum 4 bytes"}
	}
	if !verifyCRC(buf) {
		f.logger.Warnf("modbus: rtu frame failed crc check, %d bytes", len(buf))
		return nil, &DecodeError{CrcMismatch, ""}
	}
	pdu := make([]byte, len(buf)-3)
	copy(pdu, buf[1:len(buf)-2])
	return &RTUFrame{UnitID: buf[0], PDU: pdu}, nil
}
