// internal/transport/driver_rs485.go
package transport

import (
	"errors"

	gserial "github.com/goburrow/serial"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// rs485Port wraps goburrow/serial with the kernel RS-485 mode enabled, so the
// UART driver switches direction itself.
type rs485Port struct {
	p gserial.Port
}

func openRS485(cfg LineConfig) (Port, error) {
	parity := "N"
	switch cfg.Parity {
	case ParityOdd:
		parity = "O"
	case ParityEven:
		parity = "E"
	}

	p, err := gserial.Open(&gserial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   parity,
		Timeout:  cfg.ReadTimeout,
		RS485: gserial.RS485Config{
			Enabled:           true,
			RtsHighDuringSend: true,
			RtsHighAfterSend:  false,
		},
	})
	if err != nil {
		return nil, fault.New(fault.OpenFailure, "open", cfg.Port, err)
	}
	return &rs485Port{p: p}, nil
}

func (r *rs485Port) Read(b []byte) (int, error) {
	n, err := r.p.Read(b)
	if errors.Is(err, gserial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

func (r *rs485Port) Write(b []byte) (int, error) { return r.p.Write(b) }
func (r *rs485Port) Close() error                { return r.p.Close() }

// goburrow/serial exposes no buffer control; stale bytes are rejected later
// by frame validation.
func (r *rs485Port) Discard() error { return nil }
func (r *rs485Port) Flush() error   { return nil }

// Direction is switched by the kernel.
func (r *rs485Port) SetDirection(bool) error { return nil }
