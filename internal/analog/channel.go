// internal/analog/channel.go
package analog

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// Tolerance is the self-check limit, relative to the expected raw value.
const Tolerance = 0.01

// Reading is one sampled and converted transducer value.
type Reading struct {
	Name    string    `json:"name"`
	Channel int       `json:"channel"`
	Raw     float64   `json:"raw"`
	Unit    string    `json:"unit"`
	PSI     float64   `json:"psi"`
	At      time.Time `json:"at"`
}

// SelfCheckResult compares a live sample against a reference pressure.
type SelfCheckResult struct {
	ReferencePSI float64 `json:"reference_psi"`
	Expected     float64 `json:"expected"`
	Actual       float64 `json:"actual"`
	Deviation    float64 `json:"deviation"`
	Pass         bool    `json:"pass"`
}

// Channel is one transducer read through a Sampler.
type Channel struct {
	cfg     TransducerConfig
	sampler Sampler
	now     func() time.Time
}

func NewChannel(cfg TransducerConfig, sampler Sampler) (*Channel, error) {
	if sampler == nil {
		return nil, errors.New("analog: sampler required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Channel{cfg: cfg, sampler: sampler, now: time.Now}, nil
}

func (c *Channel) Config() TransducerConfig { return c.cfg }

// Read samples the channel once.
func (c *Channel) Read(ctx context.Context) (Reading, error) {
	raw, err := c.sampler.Sample(ctx, c.cfg.Stack, c.cfg.Channel, c.cfg.Output.Kind())
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Name:    c.cfg.Name,
		Channel: c.cfg.Channel,
		Raw:     raw,
		Unit:    c.cfg.Output.Unit(),
		PSI:     c.cfg.Pressure(raw),
		At:      c.now(),
	}, nil
}

// ExpectedRaw is the electrical value the transducer should output at psi.
func (c *Channel) ExpectedRaw(psi float64) float64 {
	return c.cfg.ExpectedRaw(psi)
}

// SelfCheck samples once and compares against the value expected at a
// reference pressure measured by other means.
func (c *Channel) SelfCheck(ctx context.Context, referencePSI float64) (SelfCheckResult, error) {
	if referencePSI < c.cfg.MinPSI || referencePSI > c.cfg.MaxPSI {
		return SelfCheckResult{}, fault.Newf(fault.InvalidParameter, "self-check", "",
			"reference %.2f psi outside range %.2f..%.2f", referencePSI, c.cfg.MinPSI, c.cfg.MaxPSI)
	}
	r, err := c.Read(ctx)
	if err != nil {
		return SelfCheckResult{}, err
	}
	expected := c.ExpectedRaw(referencePSI)
	dev, pass := Check(expected, r.Raw)
	return SelfCheckResult{
		ReferencePSI: referencePSI,
		Expected:     expected,
		Actual:       r.Raw,
		Deviation:    dev,
		Pass:         pass,
	}, nil
}

// Check reports the relative deviation of actual from expected and whether
// it is within Tolerance. An expected value of zero is compared absolutely.
func Check(expected, actual float64) (deviation float64, pass bool) {
	diff := math.Abs(actual - expected)
	if expected == 0 {
		return diff, diff <= Tolerance
	}
	deviation = diff / math.Abs(expected)
	return deviation, deviation <= Tolerance
}
