package modbus

import "encoding/binary"

// EncodeRequest packs req into its wire PDU for the given function code. It
// validates the address/quantity/value constraints and returns
// *InvalidArgumentError without allocating a PDU if they are violated.
func EncodeRequest(fc uint8, req any) ([]byte, error) {
	switch fc {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		r := req.(*ReqReadBits)
		if r.Quantity < 1 || r.Quantity > 2000 {
			return nil, &InvalidArgumentError{fc, "quantity must be in 1..2000"}
		}
		return encodeAddrQty(fc, r.Address, r.Quantity), nil

	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		r := req.(*ReqReadRegisters)
		if r.Quantity < 1 || r.Quantity > 125 {
			return nil, &InvalidArgumentError{fc, "quantity must be in 1..125"}
		}
		return encodeAddrQty(fc, r.Address, r.Quantity), nil

	case FuncCodeWriteSingleCoil:
		r := req.(*ReqWriteSingleCoil)
		if r.Value != 0x0000 && r.Value != 0xFF00 {
			return nil, &InvalidArgumentError{fc, "coil value must be 0x0000 or 0xFF00"}
		}
		return encodeAddrQty(fc, r.Address, r.Value), nil

	case FuncCodeWriteSingleRegister:
		r := req.(*ReqWriteSingleRegister)
		return encodeAddrQty(fc, r.Address, r.Value), nil

	case FuncCodeWriteMultipleCoils:
		r := req.(*ReqWriteMultipleCoils)
		if r.Quantity < 1 || r.Quantity > 1968 {
			return nil, &InvalidArgumentError{fc, "quantity must be in 1..1968"}
		}
		if int(r.Quantity) != len(r.Values) {
			return nil, &InvalidArgumentError{fc, "quantity does not match number of values"}
		}
		packed := packBits(r.Values)
		pdu := make([]byte, 6+len(packed))
		pdu[0] = fc
		binary.BigEndian.PutUint16(pdu[1:3], r.Address)
		binary.BigEndian.PutUint16(pdu[3:5], r.Quantity)
		pdu[5] = byte(len(packed))
		copy(pdu[6:], packed)
		return pdu, nil

	case FuncCodeWriteMultipleRegisters:
		r := req.(*ReqWriteMultipleRegisters)
		qty := len(r.Registers)
		if qty < 1 || qty > 123 {
			return nil, &InvalidArgumentError{fc, "register count must be in 1..123"}
		}
		pdu := make([]byte, 6+2*qty)
		pdu[0] = fc
		binary.BigEndian.PutUint16(pdu[1:3], r.Address)
		binary.BigEndian.PutUint16(pdu[3:5], uint16(qty))
		pdu[5] = byte(2 * qty)
		for i, v := range r.Registers {
			binary.BigEndian.PutUint16(pdu[6+2*i:8+2*i], v)
		}
		return pdu, nil

	case FuncCodeMaskWriteRegister:
		r := req.(*ReqMaskWriteRegister)
		pdu := make([]byte, 7)
		pdu[0] = fc
		binary.BigEndian.PutUint16(pdu[1:3], r.Address)
		binary.BigEndian.PutUint16(pdu[3:5], r.AndMask)
		binary.BigEndian.PutUint16(pdu[5:7], r.OrMask)
		return pdu, nil

	case FuncCodeReadWriteMultipleRegs:
		r := req.(*ReqReadWriteMultipleRegisters)
		if r.ReadQuantity < 1 || r.ReadQuantity > 125 {
			return nil, &InvalidArgumentError{fc, "read quantity must be in 1..125"}
		}
		if r.WriteQuantity < 1 || r.WriteQuantity > 121 {
			return nil, &InvalidArgumentError{fc, "write quantity must be in 1..121"}
		}
		if int(r.WriteQuantity) != len(r.WriteValues) {
			return nil, &InvalidArgumentError{fc, "write quantity does not match number of values"}
		}
		pdu := make([]byte, 10+2*len(r.WriteValues))
		pdu[0] = fc
		binary.BigEndian.PutUint16(pdu[1:3], r.ReadAddress)
		binary.BigEndian.PutUint16(pdu[3:5], r.ReadQuantity)
		binary.BigEndian.PutUint16(pdu[5:7], r.WriteAddress)
		binary.BigEndian.PutUint16(pdu[7:9], r.WriteQuantity)
		pdu[9] = byte(2 * len(r.WriteValues))
		for i, v := range r.WriteValues {
			binary.BigEndian.PutUint16(pdu[10+2*i:12+2*i], v)
		}
		return pdu, nil

	default:
		return nil, &InvalidArgumentError{fc, "unsupported function code"}
	}
}

func encodeAddrQty(fc uint8, a, b uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = fc
	binary.BigEndian.PutUint16(pdu[1:3], a)
	binary.BigEndian.PutUint16(pdu[3:5], b)
	return pdu
}

// Decode parses pdu according to role and the function code in pdu[0]. On
// an exception PDU it always returns a *ModbusExceptionError regardless of
// role, since exceptions only ever travel from server to client.
func Decode(pdu []byte, role Role) (any, error) {
	if len(pdu) < 1 {
		return nil, &DecodeError{Truncated, "empty PDU"}
	}
	fc := pdu[0]

	if isExceptionFuncCode(fc) {
		if len(pdu) != 2 {
			return nil, &DecodeError{Truncated, "exception PDU must be 2 bytes"}
		}
		return nil, &ModbusExceptionError{fc &^ exceptionFlag, ExceptionCode(pdu[1])}
	}

	if !supportedFuncCode(fc) {
		return nil, &DecodeError{UnsupportedFunction, funcCodeName(fc)}
	}

	if role == Request {
		return decodeRequest(fc, pdu)
	}
	return decodeResponse(fc, pdu)
}

func decodeRequest(fc uint8, pdu []byte) (any, error) {
	switch fc {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte request"}
		}
		qty := binary.BigEndian.Uint16(pdu[3:5])
		if qty < 1 || qty > 2000 {
			return nil, &DecodeError{QuantityOutOfRange, ""}
		}
		return &ReqReadBits{binary.BigEndian.Uint16(pdu[1:3]), qty}, nil

	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte request"}
		}
		qty := binary.BigEndian.Uint16(pdu[3:5])
		if qty < 1 || qty > 125 {
			return nil, &DecodeError{QuantityOutOfRange, ""}
		}
		return &ReqReadRegisters{binary.BigEndian.Uint16(pdu[1:3]), qty}, nil

	case FuncCodeWriteSingleCoil:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte request"}
		}
		v := binary.BigEndian.Uint16(pdu[3:5])
		if v != 0x0000 && v != 0xFF00 {
			return nil, &DecodeError{InvalidCoilValue, ""}
		}
		return &ReqWriteSingleCoil{binary.BigEndian.Uint16(pdu[1:3]), v}, nil

	case FuncCodeWriteSingleRegister:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte request"}
		}
		return &ReqWriteSingleRegister{binary.BigEndian.Uint16(pdu[1:3]), binary.BigEndian.Uint16(pdu[3:5])}, nil

	case FuncCodeWriteMultipleCoils:
		if len(pdu) < 6 {
			return nil, &DecodeError{Truncated, "expected at least 6-byte request"}
		}
		qty := binary.BigEndian.Uint16(pdu[3:5])
		if qty < 1 || qty > 1968 {
			return nil, &DecodeError{QuantityOutOfRange, ""}
		}
		count := int(pdu[5])
		if count != expectedByteCount(int(qty)) || len(pdu) != 6+count {
			return nil, &DecodeError{ByteCountMismatch, ""}
		}
		return &ReqWriteMultipleCoils{binary.BigEndian.Uint16(pdu[1:3]), qty, unpackBits(pdu[6:], int(qty))}, nil

	case FuncCodeWriteMultipleRegisters:
		if len(pdu) < 6 {
			return nil, &DecodeError{Truncated, "expected at least 6-byte request"}
		}
		qty := binary.BigEndian.Uint16(pdu[3:5])
		if qty < 1 || qty > 123 {
			return nil, &DecodeError{QuantityOutOfRange, ""}
		}
		count := int(pdu[5])
		if count != 2*int(qty) || len(pdu) != 6+count {
			return nil, &DecodeError{ByteCountMismatch, ""}
		}
		regs := make([]uint16, qty)
		for i := range regs {
			regs[i] = binary.BigEndian.Uint16(pdu[6+2*i : 8+2*i])
		}
		return &ReqWriteMultipleRegisters{binary.BigEndian.Uint16(pdu[1:3]), regs}, nil

	case FuncCodeMaskWriteRegister:
		if len(pdu) != 7 {
			return nil, &DecodeError{Truncated, "expected 7-byte request"}
		}
		return &ReqMaskWriteRegister{
			binary.BigEndian.Uint16(pdu[1:3]),
			binary.BigEndian.Uint16(pdu[3:5]),
			binary.BigEndian.Uint16(pdu[5:7]),
		}, nil

	case FuncCodeReadWriteMultipleRegs:
		if len(pdu) < 10 {
			return nil, &DecodeError{Truncated, "expected at least 10-byte request"}
		}
		readQty := binary.BigEndian.Uint16(pdu[3:5])
		writeQty := binary.BigEndian.Uint16(pdu[7:9])
		if readQty < 1 || readQty > 125 {
			return nil, &DecodeError{QuantityOutOfRange, "read quantity"}
		}
		if writeQty < 1 || writeQty > 121 {
			return nil, &DecodeError{QuantityOutOfRange, "write quantity"}
		}
		count := int(pdu[9])
		if count != 2*int(writeQty) || len(pdu) != 10+count {
			return nil, &DecodeError{ByteCountMismatch, ""}
		}
		vals := make([]uint16, writeQty)
		for i := range vals {
			vals[i] = binary.BigEndian.Uint16(pdu[10+2*i : 12+2*i])
		}
		return &ReqReadWriteMultipleRegisters{
			binary.BigEndian.Uint16(pdu[1:3]), readQty,
			binary.BigEndian.Uint16(pdu[5:7]), writeQty, vals,
		}, nil
	}
	return nil, &DecodeError{UnsupportedFunction, funcCodeName(fc)}
}

func decodeResponse(fc uint8, pdu []byte) (any, error) {
	switch fc {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		if len(pdu) < 2 {
			return nil, &DecodeError{Truncated, "expected at least 2-byte response"}
		}
		count := int(pdu[1])
		if len(pdu) != 2+count {
			return nil, &DecodeError{ByteCountMismatch, ""}
		}
		// The true bit quantity isn't on the wire for this response; the
		// caller correlates it against the outstanding request. Report the
		// maximum quantity the byte count could hold; Client trims it to
		// the request's quantity.
		return &ResReadBits{uint16(count * 8), unpackBits(pdu[2:], count*8)}, nil

	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		if len(pdu) < 2 {
			return nil, &DecodeError{Truncated, "expected at least 2-byte response"}
		}
		count := int(pdu[1])
		if count%2 != 0 || len(pdu) != 2+count {
			return nil, &DecodeError{ByteCountMismatch, ""}
		}
		regs := make([]uint16, count/2)
		for i := range regs {
			regs[i] = binary.BigEndian.Uint16(pdu[2+2*i : 4+2*i])
		}
		return &ResReadRegisters{regs}, nil

	case FuncCodeWriteSingleCoil:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte response"}
		}
		return &ReqWriteSingleCoil{binary.BigEndian.Uint16(pdu[1:3]), binary.BigEndian.Uint16(pdu[3:5])}, nil

	case FuncCodeWriteSingleRegister:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte response"}
		}
		return &ReqWriteSingleRegister{binary.BigEndian.Uint16(pdu[1:3]), binary.BigEndian.Uint16(pdu[3:5])}, nil

	case FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
		if len(pdu) != 5 {
			return nil, &DecodeError{Truncated, "expected 5-byte response"}
		}
		return &ResWriteMultiple{binary.BigEndian.Uint16(pdu[1:3]), binary.BigEndian.Uint16(pdu[3:5])}, nil

	case FuncCodeMaskWriteRegister:
		if len(pdu) != 7 {
			return nil, &DecodeError{Truncated, "expected 7-byte response"}
		}
		return &ReqMaskWriteRegister{
			binary.BigEndian.Uint16(pdu[1:3]),
			binary.BigEndian.Uint16(pdu[3:5]),
			binary.BigEndian.Uint16(pdu[5:7]),
		}, nil

	case FuncCodeReadWriteMultipleRegs:
		if len(pdu) < 2 {
			return nil, &DecodeError{Truncated, "expected at least 2-byte response"}
		}
		count := int(pdu[1])
		if count%2 != 0 || len(pdu) != 2+count {
			return nil, &DecodeError{ByteCountMismatch, ""}
		}
		regs := make([]uint16, count/2)
		for i := range regs {
			regs[i] = binary.BigEndian.Uint16(pdu[2+2*i : 4+2*i])
		}
		return &ResReadWriteMultipleRegisters{regs}, nil
	}
	return nil, &DecodeError{UnsupportedFunction, funcCodeName(fc)}
}

// expectedByteCount returns ceil(qty/8), the packed byte count for qty
// coils/discrete-inputs.
func expectedByteCount(qty int) int {
	return (qty + 7) / 8
}

// packBits packs bits LSB-first, bit i of coil offset i at byte i/8, bit
// i%8; unused high bits of the last byte are left zero.
func packBits(bits []bool) []byte {
	out := make([]byte, expectedByteCount(len(bits)))
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// unpackBits is the inverse of packBits, truncated to qty entries.
func unpackBits(data []byte, qty int) []bool {
	out := make([]bool, qty)
	for i := range out {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}
