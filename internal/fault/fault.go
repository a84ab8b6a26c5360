// internal/fault/fault.go
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Values are stable: they are exported as the
// last-error code in the device status block.
type Kind uint16

const (
	Unknown Kind = iota
	InvalidParameter
	NoAdaptersFound
	PortNotOpen
	OpenFailure
	IoFailure
	DeviceNotResponding
	CorruptFrame
	ReconfigurationAmbiguous
	DeviceException
	SamplingFailure
)

var kindNames = map[Kind]string{
	Unknown:                  "unknown",
	InvalidParameter:         "invalid parameter",
	NoAdaptersFound:          "no adapters found",
	PortNotOpen:              "port not open",
	OpenFailure:              "open failure",
	IoFailure:                "io failure",
	DeviceNotResponding:      "device not responding",
	CorruptFrame:             "corrupt frame",
	ReconfigurationAmbiguous: "reconfiguration ambiguous",
	DeviceException:          "device exception",
	SamplingFailure:          "sampling failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint16(k))
}

// Retryable reports whether a caller may reasonably try the operation again.
// CorruptFrame and ReconfigurationAmbiguous are never retryable.
func (k Kind) Retryable() bool {
	switch k {
	case OpenFailure, IoFailure, DeviceNotResponding:
		return true
	}
	return false
}

// Error carries a Kind plus enough context (port, bus address) to act on.
type Error struct {
	Kind    Kind
	Op      string
	Port    string
	Address int // -1 when not applicable
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Port != "" {
		msg += " port=" + e.Port
	}
	if e.Address >= 0 {
		msg += fmt.Sprintf(" addr=0x%02X", e.Address)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code exposes the kind as a raw status code.
func (e *Error) Code() uint16 { return uint16(e.Kind) }

// New builds an error without a bus address.
func New(kind Kind, op, port string, err error) *Error {
	return &Error{Kind: kind, Op: op, Port: port, Address: -1, Err: err}
}

// Newf builds an error from a format string.
func Newf(kind Kind, op, port, format string, args ...any) *Error {
	return New(kind, op, port, fmt.Errorf(format, args...))
}

// WithAddress returns a copy of e annotated with a bus address.
func (e *Error) WithAddress(addr uint8) *Error {
	cp := *e
	cp.Address = int(addr)
	return &cp
}

// KindOf returns the kind of the outermost fault.Error in err's chain,
// or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Annotate fills in port and bus address on a fault raised without them,
// such as a codec error. Other errors are returned unchanged.
func Annotate(err error, port string, addr uint8) error {
	var fe *Error
	if !errors.As(err, &fe) || fe.Port != "" {
		return err
	}
	cp := *fe
	cp.Port = port
	cp.Address = int(addr)
	return &cp
}
