// internal/simdev/device.go
package simdev

import (
	"encoding/binary"
	"sync"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/sensorbus/internal/frame"
)

// Device is an in-memory vibration sensor answering RTU requests the way the
// real firmware does: config writes need the unlock key and take effect on
// save, after the save acknowledgement has been sent.
type Device struct {
	mu sync.Mutex

	addr uint8
	baud int
	regs map[uint16]uint16

	unlocked    bool
	pendingAddr uint8
	pendingBaud int

	// fault injection
	drop       int
	corrupt    int
	exceptions map[uint16]byte
	stickyBaud bool

	requests int
}

// New returns a device at addr/baud with a plausible measurement block.
func New(addr uint8, baud int) *Device {
	d := &Device{
		addr:       addr,
		baud:       baud,
		regs:       make(map[uint16]uint16),
		exceptions: make(map[uint16]byte),
	}
	d.regs[frame.RegAccelX] = 0x0010
	d.regs[frame.RegAccelY] = 0xFFF0
	d.regs[frame.RegAccelZ] = 0x0800 // 1 g
	d.regs[frame.RegVelocityX] = 120 // 1.20 mm/s
	d.regs[frame.RegVelocityY] = 85
	d.regs[frame.RegVelocityZ] = 60
	d.regs[frame.RegTemperature] = 2650 // 26.50 C
	d.regs[frame.RegFrequencyX] = 500   // 50.0 Hz
	d.regs[frame.RegFrequencyY] = 500
	d.regs[frame.RegFrequencyZ] = 1000
	return d
}

// ---- state ----

func (d *Device) Address() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

func (d *Device) BaudRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baud
}

// Register returns the stored value of reg.
func (d *Device) Register(reg uint16) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

// Set stores a register value directly.
func (d *Device) Set(reg, value uint16) {
	d.mu.Lock()
	d.regs[reg] = value
	d.mu.Unlock()
}

// Requests counts frames addressed to this device, answered or not.
func (d *Device) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

// ---- fault injection ----

// DropNext leaves the next n requests unanswered.
func (d *Device) DropNext(n int) {
	d.mu.Lock()
	d.drop = n
	d.mu.Unlock()
}

// CorruptNext damages the checksum of the next n responses.
func (d *Device) CorruptNext(n int) {
	d.mu.Lock()
	d.corrupt = n
	d.mu.Unlock()
}

// RejectWrite answers writes to reg with the given exception code.
func (d *Device) RejectWrite(reg uint16, code byte) {
	d.mu.Lock()
	d.exceptions[reg] = code
	d.mu.Unlock()
}

// StickBaud makes a saved baud change acknowledged but never applied.
func (d *Device) StickBaud(on bool) {
	d.mu.Lock()
	d.stickyBaud = on
	d.mu.Unlock()
}

// ---- request handling ----

// Handle answers one request received at lineBaud. It returns nil when the
// device stays silent.
func (d *Device) Handle(req []byte, lineBaud int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lineBaud != d.baud {
		return nil
	}
	f, err := frame.Decode(req)
	if err != nil || f.Address != d.addr {
		return nil
	}
	d.requests++

	if d.drop > 0 {
		d.drop--
		return nil
	}

	var resp []byte
	var apply func()
	switch f.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		resp = d.readHolding(f)
	case modbus.FuncCodeWriteSingleRegister:
		resp, apply = d.writeSingle(f)
	default:
		resp = d.exception(f.Function, modbus.ExceptionCodeIllegalFunction)
	}

	if d.corrupt > 0 {
		d.corrupt--
		resp[len(resp)-1] ^= 0xFF
	}
	if apply != nil {
		apply()
	}
	return resp
}

func (d *Device) readHolding(f frame.Frame) []byte {
	if len(f.Payload) != 4 {
		return d.exception(f.Function, modbus.ExceptionCodeIllegalDataValue)
	}
	start := binary.BigEndian.Uint16(f.Payload[0:2])
	count := binary.BigEndian.Uint16(f.Payload[2:4])
	if count == 0 || count > 125 {
		return d.exception(f.Function, modbus.ExceptionCodeIllegalDataValue)
	}

	payload := make([]byte, 1+2*int(count))
	payload[0] = byte(2 * count)
	for i := uint16(0); i < count; i++ {
		binary.BigEndian.PutUint16(payload[1+2*i:], d.regs[start+i])
	}
	return frame.Encode(d.addr, f.Function, payload)
}

// writeSingle returns the acknowledgement and, for a save, the change to
// apply once the acknowledgement is on its way.
func (d *Device) writeSingle(f frame.Frame) ([]byte, func()) {
	if len(f.Payload) != 4 {
		return d.exception(f.Function, modbus.ExceptionCodeIllegalDataValue), nil
	}
	reg := binary.BigEndian.Uint16(f.Payload[0:2])
	val := binary.BigEndian.Uint16(f.Payload[2:4])

	if code, ok := d.exceptions[reg]; ok {
		return d.exception(f.Function, code), nil
	}
	ack := frame.Encode(d.addr, f.Function, f.Payload)

	if reg == frame.RegUnlock {
		d.unlocked = val == frame.UnlockKey
		return ack, nil
	}
	if !d.unlocked {
		return d.exception(f.Function, modbus.ExceptionCodeServerDeviceFailure), nil
	}

	switch reg {
	case frame.RegAddress:
		if val < 1 || val > 247 {
			return d.exception(f.Function, modbus.ExceptionCodeIllegalDataValue), nil
		}
		d.pendingAddr = uint8(val)
	case frame.RegBaud:
		baud, ok := baudOf(val)
		if !ok {
			return d.exception(f.Function, modbus.ExceptionCodeIllegalDataValue), nil
		}
		d.pendingBaud = baud
	case frame.RegSave:
		return ack, d.save
	default:
		d.regs[reg] = val
	}
	return ack, nil
}

// save runs with d.mu held.
func (d *Device) save() {
	if d.pendingAddr != 0 {
		d.addr = d.pendingAddr
	}
	if d.pendingBaud != 0 && !d.stickyBaud {
		d.baud = d.pendingBaud
	}
	d.pendingAddr, d.pendingBaud = 0, 0
	d.unlocked = false
}

func (d *Device) exception(fn, code byte) []byte {
	return frame.Encode(d.addr, fn|0x80, []byte{code})
}

func baudOf(code uint16) (int, bool) {
	for _, b := range frame.BaudRates() {
		if c, _ := frame.BaudCode(b); c == code {
			return b, true
		}
	}
	return 0, false
}
