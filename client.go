package modbus

import (
	"context"
)

// Client is the typed facade over the transaction registry: it
// builds request payload structs, hands them to the configured
// serializer, sends the encoded PDU through the registry, and decodes
// the matched response - translating a decoded exception into a Go
// error the caller can test with errors.As.
type Client struct {
	registry *Registry
	cfg      ClientConfig
}

// NewClient builds a Client over an already-open Transport. mode and
// baud select the registry's framing and outstanding-request policy
// baud is ignored for ModeTCP.
func NewClient(transport Transport, mode TransportMode, baud int, cfg ClientConfig) *Client {
	cfg.setDefaults()
	return &Client{
		registry: NewRegistry(transport, mode, baud, cfg.TimeoutScheduler, cfg.Logger),
		cfg:      cfg,
	}
}

// NewTCPClient opens a Modbus/TCP connection to addr and wraps it as a
// Client.
func NewTCPClient(addr string, cfg ClientConfig) (*Client, error) {
	t, err := DialTCP(addr)
	if err != nil {
		return nil, err
	}
	return NewClient(t, ModeTCP, 0, cfg), nil
}

// NewRTUClient opens a serial line per serialCfg and wraps it as a
// Client.
func NewRTUClient(serialCfg SerialConfig, cfg ClientConfig) (*Client, error) {
	t, err := OpenRTUSerial(serialCfg)
	if err != nil {
		return nil, err
	}
	return NewClient(t, ModeRTU, serialCfg.BaudRate, cfg), nil
}

// Close shuts down the underlying transport and fails any requests still
// in flight.
func (c *Client) Close() error {
	return c.registry.Close()
}

func (c *Client) exchange(ctx context.Context, unitID uint8, fc uint8, req any, role Role) (any, error) {
	pdu, err := c.cfg.RequestSerializer(fc, req)
	if err != nil {
		return nil, err
	}
	respPDU, err := c.registry.sendRequest(ctx, unitID, pdu, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return c.cfg.ResponseSerializer(respPDU, role)
}

// ReadCoils reads quantity coils starting at address from unitID (FC
// 0x01).
func (c *Client) ReadCoils(ctx context.Context, unitID uint8, address, quantity uint16) ([]bool, error) {
	resp, err := c.exchange(ctx, unitID, FuncCodeReadCoils, &ReqReadBits{Address: address, Quantity: quantity}, Response)
	if err != nil {
		return nil, err
	}
	r := resp.(*ResReadBits)
	return trimBits(r.Bits, quantity), nil
}

// ReadDiscreteInputs reads quantity discrete inputs starting at address
// from unitID (FC 0x02).
func (c *Client) ReadDiscreteInputs(ctx context.Context, unitID uint8, address, quantity uint16) ([]bool, error) {
	resp, err := c.exchange(ctx, unitID, FuncCodeReadDiscreteInputs, &ReqReadBits{Address: address, Quantity: quantity}, Response)
	if err != nil {
		return nil, err
	}
	r := resp.(*ResReadBits)
	return trimBits(r.Bits, quantity), nil
}

// trimBits cuts the byte-padded bit slice decoded off the wire down to
// the quantity the request actually asked for (the response's byte
// count rounds up to a whole byte, so the last byte may carry padding
// bits the caller never asked about).
func trimBits(bits []bool, quantity uint16) []bool {
	if int(quantity) < len(bits) {
		return bits[:quantity]
	}
	return bits
}

// ReadHoldingRegisters reads quantity holding registers starting at
// address from unitID (FC 0x03).
func (c *Client) ReadHoldingRegisters(ctx context.Context, unitID uint8, address, quantity uint16) ([]uint16, error) {
	resp, err := c.exchange(ctx, unitID, FuncCodeReadHoldingRegisters, &ReqReadRegisters{Address: address, Quantity: quantity}, Response)
	if err != nil {
		return nil, err
	}
	return resp.(*ResReadRegisters).Registers, nil
}

// ReadInputRegisters reads quantity input registers starting at address
// from unitID (FC 0x04).
func (c *Client) ReadInputRegisters(ctx context.Context, unitID uint8, address, quantity uint16) ([]uint16, error) {
	resp, err := c.exchange(ctx, unitID, FuncCodeReadInputRegisters, &ReqReadRegisters{Address: address, Quantity: quantity}, Response)
	if err != nil {
		return nil, err
	}
	return resp.(*ResReadRegisters).Registers, nil
}

// WriteSingleCoil writes value to the coil at address on unitID (FC
// 0x05).
func (c *Client) WriteSingleCoil(ctx context.Context, unitID uint8, address uint16, value bool) error {
	coilValue := uint16(0x0000)
	if value {
		coilValue = 0xFF00
	}
	_, err := c.exchange(ctx, unitID, FuncCodeWriteSingleCoil, &ReqWriteSingleCoil{Address: address, Value: coilValue}, Response)
	return err
}

// WriteSingleRegister writes value to the register at address on unitID
// (FC 0x06).
func (c *Client) WriteSingleRegister(ctx context.Context, unitID uint8, address, value uint16) error {
	_, err := c.exchange(ctx, unitID, FuncCodeWriteSingleRegister, &ReqWriteSingleRegister{Address: address, Value: value}, Response)
	return err
}

// WriteMultipleCoils writes values starting at address on unitID (FC
// 0x0F).
func (c *Client) WriteMultipleCoils(ctx context.Context, unitID uint8, address uint16, values []bool) error {
	req := &ReqWriteMultipleCoils{Address: address, Quantity: uint16(len(values)), Values: values}
	_, err := c.exchange(ctx, unitID, FuncCodeWriteMultipleCoils, req, Response)
	return err
}

// WriteMultipleRegisters writes values starting at address on unitID (FC
// 0x10).
func (c *Client) WriteMultipleRegisters(ctx context.Context, unitID uint8, address uint16, values []uint16) error {
	req := &ReqWriteMultipleRegisters{Address: address, Registers: values}
	_, err := c.exchange(ctx, unitID, FuncCodeWriteMultipleRegisters, req, Response)
	return err
}

// MaskWriteRegister applies andMask/orMask to the register at address on
// unitID (FC 0x16): result = (current AND andMask) OR (orMask AND (NOT
// andMask)).
func (c *Client) MaskWriteRegister(ctx context.Context, unitID uint8, address, andMask, orMask uint16) error {
	req := &ReqMaskWriteRegister{Address: address, AndMask: andMask, OrMask: orMask}
	_, err := c.exchange(ctx, unitID, FuncCodeMaskWriteRegister, req, Response)
	return err
}

// ReadWriteMultipleRegisters writes writeValues starting at
// writeAddress, then reads readQuantity registers starting at
// readAddress, on unitID, as a single atomic PDU (FC 0x17).
func (c *Client) ReadWriteMultipleRegisters(ctx context.Context, unitID uint8, readAddress, readQuantity, writeAddress uint16, writeValues []uint16) ([]uint16, error) {
	req := &ReqReadWriteMultipleRegisters{
		ReadAddress:   readAddress,
		ReadQuantity:  readQuantity,
		WriteAddress:  writeAddress,
		WriteQuantity: uint16(len(writeValues)),
		WriteValues:   writeValues,
	}
	resp, err := c.exchange(ctx, unitID, FuncCodeReadWriteMultipleRegs, req, Response)
	if err != nil {
		return nil, err
	}
	return resp.(*ResReadWriteMultipleRegisters).Registers, nil
}

// WithTimeout is a convenience for callers that want a bounded context
// sized to the client's configured RequestTimeout without repeating it
// at every call site.
func (c *Client) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.RequestTimeout)
}
