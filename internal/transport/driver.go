// internal/transport/driver.go
package transport

import (
	"errors"
	"io"
)

// ErrDirectionUnsupported is returned by ports that cannot drive the
// transmit-enable signal. The registry treats it as a no-op.
var ErrDirectionUnsupported = errors.New("transport: line direction control unsupported")

// Port is an open serial handle as seen by the registry.
// Drivers normalize read timeouts to (0, nil).
type Port interface {
	io.ReadWriteCloser

	// Discard drops bytes already buffered on the receive side.
	Discard() error

	// Flush blocks until written bytes have left the transmitter.
	Flush() error

	// SetDirection asserts (true) or releases (false) transmit-enable.
	SetDirection(tx bool) error
}

// Driver opens ports.
type Driver interface {
	Open(cfg LineConfig) (Port, error)
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(cfg LineConfig) (Port, error)

func (f DriverFunc) Open(cfg LineConfig) (Port, error) { return f(cfg) }

func defaultDrivers() map[string]Driver {
	return map[string]Driver{
		DriverNative: DriverFunc(openNative),
		DriverRS485:  DriverFunc(openRS485),
		DriverTarm:   DriverFunc(openTarm),
	}
}
