// internal/transport/driver_native.go
package transport

import (
	"errors"

	bugst "go.bug.st/serial"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// nativePort wraps go.bug.st/serial. Read returns (0, nil) when the read
// timeout expires, which is already the registry contract.
type nativePort struct {
	p bugst.Port
}

func openNative(cfg LineConfig) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   bugstParity(cfg.Parity),
		StopBits: bugstStopBits(cfg.StopBits),
	}

	p, err := bugst.Open(cfg.Port, mode)
	if err != nil {
		return nil, classifyNative(cfg.Port, err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fault.New(fault.OpenFailure, "open", cfg.Port, err)
	}
	return &nativePort{p: p}, nil
}

func (n *nativePort) Read(b []byte) (int, error)  { return n.p.Read(b) }
func (n *nativePort) Write(b []byte) (int, error) { return n.p.Write(b) }
func (n *nativePort) Close() error                { return n.p.Close() }
func (n *nativePort) Discard() error              { return n.p.ResetInputBuffer() }
func (n *nativePort) Flush() error                { return n.p.Drain() }
func (n *nativePort) SetDirection(tx bool) error  { return n.p.SetRTS(tx) }

func bugstParity(p Parity) bugst.Parity {
	switch p {
	case ParityOdd:
		return bugst.OddParity
	case ParityEven:
		return bugst.EvenParity
	default:
		return bugst.NoParity
	}
}

func bugstStopBits(s int) bugst.StopBits {
	if s == 2 {
		return bugst.TwoStopBits
	}
	return bugst.OneStopBit
}

// classifyNative separates settings the driver rejects from OS refusals.
func classifyNative(port string, err error) error {
	var pe *bugst.PortError
	if errors.As(err, &pe) {
		switch pe.Code() {
		case bugst.InvalidSpeed, bugst.InvalidDataBits, bugst.InvalidParity, bugst.InvalidStopBits:
			return fault.New(fault.InvalidParameter, "open", port, err)
		}
	}
	return fault.New(fault.OpenFailure, "open", port, err)
}
