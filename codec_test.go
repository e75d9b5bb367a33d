package modbus

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncodeRequestReadHoldingRegisters(t *testing.T) {
	pdu, err := EncodeRequest(FuncCodeReadHoldingRegisters, &ReqReadRegisters{Address: 0x006B, Quantity: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x03, 0x00, 0x6B, 0x00, 0x03}
	if !reflect.DeepEqual(pdu, want) {
		t.Fatalf("got % X, want % X", pdu, want)
	}
}

func TestEncodeRequestQuantityOutOfRange(t *testing.T) {
	_, err := EncodeRequest(FuncCodeReadHoldingRegisters, &ReqReadRegisters{Address: 0, Quantity: 126})
	var invalid *InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want *InvalidArgumentError", err)
	}
}

func TestEncodeRequestWriteSingleCoilRejectsBadValue(t *testing.T) {
	_, err := EncodeRequest(FuncCodeWriteSingleCoil, &ReqWriteSingleCoil{Address: 0, Value: 0x1234})
	var invalid *InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want *InvalidArgumentError", err)
	}
}

func TestEncodeDecodeWriteMultipleCoilsRoundTrip(t *testing.T) {
	values := []bool{true, false, true, true, false, false, false, true, true}
	req := &ReqWriteMultipleCoils{Address: 0x0013, Quantity: uint16(len(values)), Values: values}
	pdu, err := EncodeRequest(FuncCodeWriteMultipleCoils, req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(pdu, Request)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(*ReqWriteMultipleCoils)
	if !reflect.DeepEqual(got.Values, values) {
		t.Fatalf("got %v, want %v", got.Values, values)
	}
}

func TestDecodeExceptionResponse(t *testing.T) {
	pdu := []byte{FuncCodeReadHoldingRegisters | exceptionFlag, byte(ExcIllegalDataAddress)}
	_, err := Decode(pdu, Response)
	var exc *ModbusExceptionError
	if !errors.As(err, &exc) {
		t.Fatalf("got %v, want *ModbusExceptionError", err)
	}
	if exc.Func != FuncCodeReadHoldingRegisters || exc.Code != ExcIllegalDataAddress {
		t.Fatalf("got %+v, want Func=0x03 Code=0x02", exc)
	}
}

func TestDecodeReadHoldingRegistersResponse(t *testing.T) {
	pdu := []byte{0x03, 0x04, 0x00, 0x0A, 0x00, 0x0B}
	decoded, err := Decode(pdu, Response)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(*ResReadRegisters)
	want := []uint16{0x000A, 0x000B}
	if !reflect.DeepEqual(got.Registers, want) {
		t.Fatalf("got %v, want %v", got.Registers, want)
	}
}

func TestDecodeReadHoldingRegistersResponseByteCountMismatch(t *testing.T) {
	pdu := []byte{0x03, 0x04, 0x00, 0x0A} // claims 4 bytes, only 2 present
	_, err := Decode(pdu, Response)
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != ByteCountMismatch {
		t.Fatalf("got %v, want ByteCountMismatch", err)
	}
}

func TestDecodeUnsupportedFunction(t *testing.T) {
	_, err := Decode([]byte{0x09, 0x00}, Request)
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != UnsupportedFunction {
		t.Fatalf("got %v, want UnsupportedFunction", err)
	}
}

func TestPackUnpackBitsRoundTrip(t *testing.T) {
	bits := []bool{true, false, true, false, true, false, true, false, true, true}
	packed := packBits(bits)
	if len(packed) != expectedByteCount(len(bits)) {
		t.Fatalf("packed length %d, want %d", len(packed), expectedByteCount(len(bits)))
	}
	unpacked := unpackBits(packed, len(bits))
	if !reflect.DeepEqual(unpacked, bits) {
		t.Fatalf("got %v, want %v", unpacked, bits)
	}
}
