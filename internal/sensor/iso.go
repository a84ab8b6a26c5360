// internal/sensor/iso.go
package sensor

import "encoding/json"

// MachineClass selects the ISO 10816 velocity thresholds.
// Class I: small machines up to 15 kW (the default, typical of compressors
// and fans in this deployment), II: medium, III: large rigid, IV: large soft.
type MachineClass uint8

const (
	ClassI MachineClass = iota + 1
	ClassII
	ClassIII
	ClassIV
)

// Valid reports whether c is a known class. Zero is accepted and means ClassI.
func (c MachineClass) Valid() bool {
	return c <= ClassIV
}

// Zone is the ISO 10816 evaluation zone.
type Zone uint8

const (
	ZoneA Zone = iota + 1
	ZoneB
	ZoneC
	ZoneD
)

func (z Zone) String() string {
	switch z {
	case ZoneA:
		return "A"
	case ZoneB:
		return "B"
	case ZoneC:
		return "C"
	case ZoneD:
		return "D"
	}
	return "?"
}

func (z Zone) MarshalJSON() ([]byte, error) { return json.Marshal(z.String()) }

// Severity is the operator-facing wording for a zone.
type Severity uint8

const (
	SeverityGood Severity = iota + 1
	SeveritySatisfactory
	SeverityUnsatisfactory
	SeverityUnacceptable
)

func (s Severity) String() string {
	switch s {
	case SeverityGood:
		return "good"
	case SeveritySatisfactory:
		return "satisfactory"
	case SeverityUnsatisfactory:
		return "unsatisfactory"
	case SeverityUnacceptable:
		return "unacceptable"
	}
	return "unknown"
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// zone boundaries in mm/s RMS: A/B, B/C, C/D.
var zoneLimits = map[MachineClass][3]float64{
	ClassI:   {0.71, 1.8, 4.5},
	ClassII:  {1.12, 2.8, 7.1},
	ClassIII: {1.8, 4.5, 11.2},
	ClassIV:  {2.8, 7.1, 18.0},
}

// Classify maps a velocity to its zone and severity.
func Classify(velocity float64, class MachineClass) (Zone, Severity) {
	if class == 0 {
		class = ClassI
	}
	lim, ok := zoneLimits[class]
	if !ok {
		lim = zoneLimits[ClassI]
	}
	switch {
	case velocity < lim[0]:
		return ZoneA, SeverityGood
	case velocity < lim[1]:
		return ZoneB, SeveritySatisfactory
	case velocity < lim[2]:
		return ZoneC, SeverityUnsatisfactory
	default:
		return ZoneD, SeverityUnacceptable
	}
}
