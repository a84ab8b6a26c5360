// internal/frame/codec_test.go
package frame

import (
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/sensorbus/internal/fault"
)

func TestEncodeKnownVector(t *testing.T) {
	// Classic reference request: slave 1, FC 3, start 0, quantity 10.
	req, err := ReadHoldingRegisters(0x01, 0x0000, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A, 0xC5, 0xCD}, req)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		addr    uint8
		fn      byte
		payload []byte
	}{
		{0x50, 0x03, []byte{0x00, 0x34, 0x00, 0x13}},
		{0x01, 0x06, []byte{0x00, 0x1A, 0x00, 0x51}},
		{0xF7, 0x10, []byte{}},
		{0x00, 0x2B, []byte{0xFF, 0x00, 0x7E, 0x81, 0x01}},
	}
	for _, c := range cases {
		raw := Encode(c.addr, c.fn, c.payload)
		f, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, c.addr, f.Address)
		assert.Equal(t, c.fn, f.Function)
		assert.Equal(t, c.payload, f.Payload)
		assert.Equal(t, Checksum(raw[:len(raw)-2]), f.Checksum)
	}
}

func TestSingleByteCorruptionDetected(t *testing.T) {
	raw := Encode(0x50, 0x03, []byte{0x26, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})

	for i := range raw {
		for _, mask := range []byte{0x01, 0x80, 0xFF, 0x5A} {
			bad := append([]byte(nil), raw...)
			bad[i] ^= mask
			_, err := Decode(bad)
			require.Error(t, err, "byte %d mask 0x%02X", i, mask)
			assert.True(t, fault.Is(err, fault.CorruptFrame))
		}
	}
}

func TestDecodeShortFrame(t *testing.T) {
	_, err := Decode([]byte{0x50, 0x03, 0x00})
	assert.True(t, fault.Is(err, fault.CorruptFrame))
}

func TestParseReadRegisters(t *testing.T) {
	resp := Encode(0x50, 0x03, []byte{0x04, 0x12, 0x34, 0xAB, 0xCD})

	data, err := ParseReadRegisters(resp, 0x50, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x1234, 0xABCD}, Registers(data))

	_, err = ParseReadRegisters(resp, 0x51, 2)
	assert.True(t, fault.Is(err, fault.CorruptFrame), "wrong address")

	_, err = ParseReadRegisters(resp, 0x50, 3)
	assert.True(t, fault.Is(err, fault.CorruptFrame), "wrong count")
}

func TestParseReadRegistersException(t *testing.T) {
	resp := Encode(0x50, 0x83, []byte{modbus.ExceptionCodeIllegalDataAddress})

	_, err := ParseReadRegisters(resp, 0x50, 2)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.DeviceException))

	me, ok := ExceptionOf(err)
	require.True(t, ok)
	assert.Equal(t, byte(modbus.ExceptionCodeIllegalDataAddress), me.ExceptionCode)
	assert.Equal(t, byte(0x03), me.FunctionCode)
}

func TestParseWriteAck(t *testing.T) {
	req := WriteSingleRegister(0x50, RegAddress, 0x51)
	require.NoError(t, ParseWriteAck(append([]byte(nil), req...), req))

	other := WriteSingleRegister(0x50, RegAddress, 0x52)
	assert.True(t, fault.Is(ParseWriteAck(other, req), fault.CorruptFrame))

	multi, err := WriteMultipleRegisters(0x50, 0x10, []uint16{1, 2, 3})
	require.NoError(t, err)
	ack := Encode(0x50, 0x10, []byte{0x00, 0x10, 0x00, 0x03})
	require.NoError(t, ParseWriteAck(ack, multi))
}

func TestRequestLimits(t *testing.T) {
	_, err := ReadHoldingRegisters(1, 0, 0)
	assert.True(t, fault.Is(err, fault.InvalidParameter))

	_, err = ReadHoldingRegisters(1, 0, 126)
	assert.True(t, fault.Is(err, fault.InvalidParameter))

	_, err = WriteMultipleRegisters(1, 0, nil)
	assert.True(t, fault.Is(err, fault.InvalidParameter))
}

func TestComplete(t *testing.T) {
	assert.False(t, Complete([]byte{0x50, 0x03, 0x02}, 7))
	assert.True(t, Complete(make([]byte, 7), 7))

	exc := Encode(0x50, 0x83, []byte{0x02})
	assert.True(t, Complete(exc, 43))
	assert.False(t, Complete(exc[:4], 43))
}

func TestReadResponseLen(t *testing.T) {
	assert.Equal(t, 7, ReadResponseLen(1))
	assert.Equal(t, 5+2*int(BlockLen), ReadResponseLen(BlockLen))
}
