// internal/writer/types.go
package writer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/poller"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/status"
)

// Kind of a delivered record.
type Kind string

const (
	KindVibration Kind = "vibration"
	KindPressure  Kind = "pressure"
)

// Record is one delivery unit: a poll outcome or an analog sample.
// Exactly one of Vibration and Pressure is set when Error is empty.
type Record struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Source  string    `json:"source"` // device or transducer name
	Port    string    `json:"port,omitempty"`
	Address uint8     `json:"address,omitempty"`
	Path    string    `json:"path,omitempty"`
	At      time.Time `json:"at"`

	Vibration *sensor.Reading `json:"vibration,omitempty"`
	Pressure  *analog.Reading `json:"pressure,omitempty"`

	Error string `json:"error,omitempty"`
}

// OK reports whether the record carries a value.
func (r Record) OK() bool { return r.Error == "" }

// FromPoll converts one poll result.
func FromPoll(res poller.PollResult) Record {
	rec := Record{
		ID:      uuid.NewString(),
		Kind:    KindVibration,
		Source:  res.Device.Name,
		Port:    res.Port,
		Address: res.Device.Address,
		Path:    string(res.Path),
		At:      res.At,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		return rec
	}
	rd := res.Reading
	rec.Vibration = &rd
	return rec
}

// FromAnalog converts one analog sample. err is the sampling failure, if any.
func FromAnalog(name string, rd analog.Reading, err error, at time.Time) Record {
	rec := Record{
		ID:     uuid.NewString(),
		Kind:   KindPressure,
		Source: name,
		At:     at,
	}
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Pressure = &rd
	if !rd.At.IsZero() {
		rec.At = rd.At
	}
	return rec
}

// Writer delivers records to one sink.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}
