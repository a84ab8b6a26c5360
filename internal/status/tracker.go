// internal/status/tracker.go
package status

import "errors"

// Tracker owns the status of one device across poll cycles.
// It is not safe for concurrent use; the orchestrator goroutine owns it.
type Tracker struct {
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

func (t *Tracker) Snapshot() Snapshot { return t.snap }

// Observe folds one poll outcome into the status and reports whether
// anything changed. Success clears the error code and the error timer.
// seconds_in_error is advanced by Tick only.
func (t *Tracker) Observe(err error) bool {
	before := t.snap

	if err == nil {
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
	} else {
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(err)
	}

	return before != t.snap
}

// SetIdentity records the device's bus address, baud code and zone.
func (t *Tracker) SetIdentity(addr, baudCode, zone uint16) bool {
	before := t.snap
	t.snap.Address = addr
	t.snap.BaudCode = baudCode
	t.snap.Zone = zone
	return before != t.snap
}

// Tick advances seconds_in_error while the device is not OK.
// It saturates at SecondsInErrorMax.
func (t *Tracker) Tick() bool {
	if t.snap.Health == HealthOK {
		return false
	}
	if t.snap.SecondsInError >= SecondsInErrorMax {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}

	return 1
}
