// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/sensorbus/internal/sensor"
)

// ReadPath names how a reading was obtained.
type ReadPath string

const (
	PathBurst  ReadPath = "burst"
	PathSingle ReadPath = "single"
)

// PollResult is the outcome of polling one device in one cycle.
// Reading is meaningful only when Err is nil.
type PollResult struct {
	Port    string
	Device  sensor.Device
	Reading sensor.Reading
	Path    ReadPath
	At      time.Time

	Err error // non-nil means no reading this cycle
}

// OK reports whether the poll produced a reading.
func (r PollResult) OK() bool { return r.Err == nil }
