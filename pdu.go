package modbus

import "fmt"

// Standard Modbus function codes (Modbus Application Protocol v1.1b3, §5).
const (
	FuncCodeReadCoils              uint8 = 0x01
	FuncCodeReadDiscreteInputs     uint8 = 0x02
	FuncCodeReadHoldingRegisters   uint8 = 0x03
	FuncCodeReadInputRegisters     uint8 = 0x04
	FuncCodeWriteSingleCoil        uint8 = 0x05
	FuncCodeWriteSingleRegister    uint8 = 0x06
	FuncCodeWriteMultipleCoils     uint8 = 0x0F
	FuncCodeWriteMultipleRegisters uint8 = 0x10
	FuncCodeMaskWriteRegister      uint8 = 0x16
	FuncCodeReadWriteMultipleRegs  uint8 = 0x17

	// exceptionFlag is OR'd into a request's function code by a server to
	// signal that the PDU carries an exception response instead.
	exceptionFlag uint8 = 0x80
)

// Role disambiguates the two encodings a function code can carry: the
// request a client sends, and the response a server returns. The two
// differ in byte layout for most function codes; for FC 0x05, 0x06 and
// 0x16 the response echoes the request.
type Role int

const (
	Request Role = iota
	Response
)

func (r Role) String() string {
	if r == Request {
		return "request"
	}
	return "response"
}

// PDU limits: a Modbus PDU is always 1..253 bytes.
const (
	MinPDULen = 1
	MaxPDULen = 253
)

// supportedFuncCode reports whether fc is one of the catalogue this codec
// knows how to encode/decode.
func supportedFuncCode(fc uint8) bool {
	switch fc {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters,
		FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters,
		FuncCodeMaskWriteRegister, FuncCodeReadWriteMultipleRegs:
		return true
	}
	return false
}

func funcCodeName(fc uint8) string {
	switch fc {
	case FuncCodeReadCoils:
		return "ReadCoils"
	case FuncCodeReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case FuncCodeReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncCodeReadInputRegisters:
		return "ReadInputRegisters"
	case FuncCodeWriteSingleCoil:
		return "WriteSingleCoil"
	case FuncCodeWriteSingleRegister:
		return "WriteSingleRegister"
	case FuncCodeWriteMultipleCoils:
		return "WriteMultipleCoils"
	case FuncCodeWriteMultipleRegisters:
		return "WriteMultipleRegisters"
	case FuncCodeMaskWriteRegister:
		return "MaskWriteRegister"
	case FuncCodeReadWriteMultipleRegs:
		return "ReadWriteMultipleRegisters"
	default:
		return fmt.Sprintf("FuncCode(0x%02X)", fc)
	}
}

// ReqReadBits is the request payload shared by FC 0x01 (ReadCoils) and
// FC 0x02 (ReadDiscreteInputs).
type ReqReadBits struct {
	Address  uint16
	Quantity uint16 // 1..2000
}

// ResReadBits is the response payload shared by FC 0x01 and FC 0x02:
// bits packed LSB-first into whole bytes. The requested quantity is not
// on the wire, so Decode sets Quantity to the byte count times 8 and
// fills Bits to that length.
type ResReadBits struct {
	Quantity uint16
	Bits     []bool
}

// ReqReadRegisters is the request payload shared by FC 0x03
// (ReadHoldingRegisters) and FC 0x04 (ReadInputRegisters).
type ReqReadRegisters struct {
	Address  uint16
	Quantity uint16 // 1..125
}

// ResReadRegisters is the response payload shared by FC 0x03 and FC 0x04.
type ResReadRegisters struct {
	Registers []uint16
}

// ReqWriteSingleCoil is the FC 0x05 request payload. Value must be
// 0x0000 (OFF) or 0xFF00 (ON); the response echoes the request verbatim.
type ReqWriteSingleCoil struct {
	Address uint16
	Value   uint16
}

// ReqWriteSingleRegister is the FC 0x06 request payload; the response
// echoes the request verbatim.
type ReqWriteSingleRegister struct {
	Address uint16
	Value   uint16
}

// ReqWriteMultipleCoils is the FC 0x0F request payload.
type ReqWriteMultipleCoils struct {
	Address  uint16
	Quantity uint16 // 1..1968
	Values   []bool
}

// ResWriteMultiple is the response payload shared by FC 0x0F and FC 0x10:
// the address and quantity written, echoed back by the server.
type ResWriteMultiple struct {
	Address  uint16
	Quantity uint16
}

// ReqWriteMultipleRegisters is the FC 0x10 request payload.
type ReqWriteMultipleRegisters struct {
	Address   uint16
	Registers []uint16 // 1..123 entries
}

// ReqMaskWriteRegister is the FC 0x16 request payload; the response
// echoes the request verbatim.
type ReqMaskWriteRegister struct {
	Address uint16
	AndMask uint16
	OrMask  uint16
}

// ReqReadWriteMultipleRegisters is the FC 0x17 request payload: a read
// sub-request and a write sub-request executed atomically by the server,
// write performed before read.
type ReqReadWriteMultipleRegisters struct {
	ReadAddress   uint16
	ReadQuantity  uint16 // 1..125
	WriteAddress  uint16
	WriteQuantity uint16 // 1..121
	WriteValues   []uint16
}

// ResReadWriteMultipleRegisters is the FC 0x17 response payload: the
// registers read after the write sub-request was applied.
type ResReadWriteMultipleRegisters struct {
	Registers []uint16
}
