// internal/frame/request.go
package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/sensorbus/internal/fault"
)

const (
	// maxReadWords is the register limit of one FC 3 request.
	maxReadWords = 125

	// maxWriteWords is the register limit of one FC 16 request.
	maxWriteWords = 123

	// WriteAckLen is the length of an FC 6 / FC 16 acknowledgement.
	WriteAckLen = 8
)

// ---- requests ----

// ReadHoldingRegisters builds an FC 3 request.
func ReadHoldingRegisters(addr uint8, start, count uint16) ([]byte, error) {
	if count == 0 || count > maxReadWords {
		return nil, fault.Newf(fault.InvalidParameter, "encode", "",
			"read quantity %d out of range 1..%d", count, maxReadWords)
	}
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], start)
	binary.BigEndian.PutUint16(data[2:4], count)
	return EncodePDU(addr, &modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         data,
	}), nil
}

// WriteSingleRegister builds an FC 6 request.
func WriteSingleRegister(addr uint8, reg, value uint16) []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], reg)
	binary.BigEndian.PutUint16(data[2:4], value)
	return EncodePDU(addr, &modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteSingleRegister,
		Data:         data,
	})
}

// WriteMultipleRegisters builds an FC 16 request.
func WriteMultipleRegisters(addr uint8, start uint16, values []uint16) ([]byte, error) {
	n := len(values)
	if n == 0 || n > maxWriteWords {
		return nil, fault.Newf(fault.InvalidParameter, "encode", "",
			"write quantity %d out of range 1..%d", n, maxWriteWords)
	}
	data := make([]byte, 5+2*n)
	binary.BigEndian.PutUint16(data[0:2], start)
	binary.BigEndian.PutUint16(data[2:4], uint16(n))
	data[4] = byte(2 * n)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[5+2*i:], v)
	}
	return EncodePDU(addr, &modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteMultipleRegisters,
		Data:         data,
	}), nil
}

// ReadResponseLen is the expected FC 3 response length for count registers.
func ReadResponseLen(count uint16) int {
	return headerLen + 1 + 2*int(count) + crcLen
}

// ---- responses ----

// ParseReadRegisters validates an FC 3 response from addr carrying count
// registers and returns the raw register bytes (big-endian, 2 per register).
func ParseReadRegisters(raw []byte, addr uint8, count uint16) ([]byte, error) {
	f, err := decodeResponse(raw, addr, modbus.FuncCodeReadHoldingRegisters)
	if err != nil {
		return nil, err
	}
	if len(f.Payload) < 1 {
		return nil, fault.Newf(fault.CorruptFrame, "decode", "", "empty read payload")
	}
	byteCount := int(f.Payload[0])
	if byteCount != 2*int(count) || len(f.Payload)-1 != byteCount {
		return nil, fault.Newf(fault.CorruptFrame, "decode", "",
			"byte count %d (payload %d) for %d registers", byteCount, len(f.Payload)-1, count)
	}
	return f.Payload[1:], nil
}

// ParseWriteAck validates the acknowledgement of an FC 6 or FC 16 request.
// FC 6 echoes the request; FC 16 echoes start address and quantity.
func ParseWriteAck(raw, req []byte) error {
	if len(req) < MinFrameLen+4 {
		return fault.Newf(fault.InvalidParameter, "decode", "", "request too short to acknowledge")
	}
	addr, fn := req[0], req[1]

	f, err := decodeResponse(raw, addr, fn)
	if err != nil {
		return err
	}
	if len(f.Payload) != 4 || !bytes.Equal(f.Payload, req[2:6]) {
		return fault.Newf(fault.CorruptFrame, "decode", "",
			"acknowledgement does not echo request (fc=%d)", fn)
	}
	return nil
}

// Registers unpacks big-endian register bytes.
func Registers(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}
