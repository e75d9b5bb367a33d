// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

// Package modbus implements a client (master) for the Modbus application
// protocol over two transport bindings: Modbus/TCP (MBAP framing over a
// persistent byte stream) and Modbus/RTU (CRC-trailed framing over an
// asynchronous serial line, delimited by inter-character silence).
//
// The package is organized, leaves first, as:
//
//   - pdu.go, codec.go, exceptions.go: encode/decode for the standard
//     function-code PDUs and the exception sub-protocol.
//   - tcp_framer.go: the MBAP wrap/unwrap codec and its streaming,
//     resumable decoder.
//   - rtu_framer.go: the RTU wrap/unwrap codec and its silence-timed frame
//     boundary detector.
//   - registry.go: the transaction registry, which owns every pending
//     request, allocates transaction identifiers, arms timeouts and drains
//     on disconnect.
//   - client.go: the typed Client facade (ReadCoils, WriteSingleRegister,
//     ...) built on top of the registry.
//   - transport.go: the Transport contract the registry requires from
//     whatever byte pipe is underneath; tcp_transport.go and
//     rtu_serial_transport.go are two concrete implementations of it.
//
// A minimal TCP client looks like this:
//
//	conn, err := net.Dial("tcp", "plc.local:502")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	transport := modbus.NewTCPTransport(conn)
//	client := modbus.NewClient(transport, modbus.ModeTCP, 0, modbus.DefaultClientConfig())
//	defer client.Close()
//
//	regs, err := client.ReadHoldingRegisters(context.Background(), 1, 0x006B, 3)
//	if err != nil {
//	    var exc *modbus.ModbusExceptionError
//	    if errors.As(err, &exc) {
//	        log.Printf("device returned exception: %s", exc)
//	    }
//	    log.Fatal(err)
//	}
//	log.Printf("registers: %v", regs)
//
// Server-side request handling, Modbus Plus/ASCII framing, and multi-master
// arbitration on RTU are out of scope.
package modbus
