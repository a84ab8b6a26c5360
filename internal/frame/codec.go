// internal/frame/codec.go
package frame

import (
	"errors"
	"fmt"

	"github.com/goburrow/modbus"
	"github.com/sigurn/crc16"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// RTU ADU geometry.
//
//	Address(1) Function(1) Payload(N) CRC(2, little-endian)
const (
	headerLen   = 2
	crcLen      = 2
	MinFrameLen = headerLen + crcLen

	// ExceptionFrameLen is Address + Function|0x80 + ExceptionCode + CRC.
	ExceptionFrameLen = 5

	// MaxFrameLen is the RTU serial line limit.
	MaxFrameLen = 256

	exceptionBit byte = 0x80
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Frame is one decoded request or response.
type Frame struct {
	Address  uint8
	Function byte
	Payload  []byte
	Checksum uint16
}

// IsException reports whether the function code carries the error bit.
func (f Frame) IsException() bool {
	return f.Function&exceptionBit != 0
}

// PDU returns the protocol data unit (function code + payload).
func (f Frame) PDU() *modbus.ProtocolDataUnit {
	return &modbus.ProtocolDataUnit{FunctionCode: f.Function, Data: f.Payload}
}

// Checksum computes CRC-16/MODBUS over b.
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// Encode builds a complete frame: address, function, payload, CRC.
func Encode(addr uint8, fn byte, payload []byte) []byte {
	adu := make([]byte, 0, headerLen+len(payload)+crcLen)
	adu = append(adu, addr, fn)
	adu = append(adu, payload...)
	crc := Checksum(adu)
	return append(adu, byte(crc), byte(crc>>8))
}

// EncodePDU builds a frame from a protocol data unit.
func EncodePDU(addr uint8, pdu *modbus.ProtocolDataUnit) []byte {
	return Encode(addr, pdu.FunctionCode, pdu.Data)
}

// Decode splits raw bytes into a Frame and verifies the checksum over the
// preceding bytes. Short frames and checksum mismatches are CorruptFrame.
func Decode(raw []byte) (Frame, error) {
	n := len(raw)
	if n < MinFrameLen {
		return Frame{}, fault.Newf(fault.CorruptFrame, "decode", "", "short frame: %d bytes", n)
	}
	if n > MaxFrameLen {
		return Frame{}, fault.Newf(fault.CorruptFrame, "decode", "", "oversized frame: %d bytes", n)
	}

	body := raw[:n-crcLen]
	got := uint16(raw[n-2]) | uint16(raw[n-1])<<8
	want := Checksum(body)
	if got != want {
		return Frame{}, fault.Newf(fault.CorruptFrame, "decode", "",
			"crc mismatch: got=0x%04X want=0x%04X", got, want)
	}

	payload := make([]byte, len(body)-headerLen)
	copy(payload, body[headerLen:])

	return Frame{
		Address:  body[0],
		Function: body[1],
		Payload:  payload,
		Checksum: got,
	}, nil
}

// decodeResponse decodes raw and checks it answers a request to addr with fn.
// An exception response becomes a DeviceException wrapping *modbus.ModbusError.
func decodeResponse(raw []byte, addr uint8, fn byte) (Frame, error) {
	f, err := Decode(raw)
	if err != nil {
		return Frame{}, err
	}
	if f.Address != addr {
		return Frame{}, fault.Newf(fault.CorruptFrame, "decode", "",
			"address mismatch: got=0x%02X want=0x%02X", f.Address, addr)
	}
	if f.Function == fn|exceptionBit {
		if len(f.Payload) != 1 {
			return Frame{}, fault.Newf(fault.CorruptFrame, "decode", "",
				"exception payload length %d", len(f.Payload))
		}
		return Frame{}, fault.New(fault.DeviceException, "decode", "", &modbus.ModbusError{
			FunctionCode:  fn,
			ExceptionCode: f.Payload[0],
		})
	}
	if f.Function != fn {
		return Frame{}, fault.Newf(fault.CorruptFrame, "decode", "",
			"function mismatch: got=%d want=%d", f.Function, fn)
	}
	return f, nil
}

// ExceptionOf extracts the device exception from err, if any.
func ExceptionOf(err error) (*modbus.ModbusError, bool) {
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// Complete reports whether buf already holds a full response for a request
// expecting want bytes: either want bytes, or a full exception frame.
func Complete(buf []byte, want int) bool {
	if len(buf) >= want {
		return true
	}
	return len(buf) >= ExceptionFrameLen && buf[1]&exceptionBit != 0
}

func (f Frame) String() string {
	return fmt.Sprintf("addr=0x%02X fc=%d len=%d crc=0x%04X", f.Address, f.Function, len(f.Payload), f.Checksum)
}
