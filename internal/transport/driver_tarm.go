// internal/transport/driver_tarm.go
package transport

import (
	"io"

	tserial "github.com/tarm/serial"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// tarmPort wraps tarm/serial. A timed-out read surfaces there as io.EOF.
type tarmPort struct {
	p *tserial.Port
}

func openTarm(cfg LineConfig) (Port, error) {
	parity := tserial.ParityNone
	switch cfg.Parity {
	case ParityOdd:
		parity = tserial.ParityOdd
	case ParityEven:
		parity = tserial.ParityEven
	}
	stop := tserial.Stop1
	if cfg.StopBits == 2 {
		stop = tserial.Stop2
	}

	p, err := tserial.OpenPort(&tserial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
		Size:        byte(cfg.DataBits),
		Parity:      parity,
		StopBits:    stop,
	})
	if err != nil {
		return nil, fault.New(fault.OpenFailure, "open", cfg.Port, err)
	}
	return &tarmPort{p: p}, nil
}

func (t *tarmPort) Read(b []byte) (int, error) {
	n, err := t.p.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

func (t *tarmPort) Write(b []byte) (int, error) { return t.p.Write(b) }
func (t *tarmPort) Close() error                { return t.p.Close() }
func (t *tarmPort) Discard() error              { return t.p.Flush() }
func (t *tarmPort) Flush() error                { return nil }
func (t *tarmPort) SetDirection(bool) error     { return ErrDirectionUnsupported }
