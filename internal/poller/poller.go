// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/sensorbus/internal/fault"
	"github.com/tamzrod/sensorbus/internal/sensor"
)

// Source is what the poller reads through. *Engine implements it.
type Source interface {
	Devices() []sensor.Device
	ReadBurst(ctx context.Context, dev sensor.Device) (sensor.Reading, error)
	ReadSingle(ctx context.Context, dev sensor.Device) (sensor.Reading, error)
}

// Config is the runtime config of the poll loop.
type Config struct {
	Interval time.Duration

	// FallbackSingle retries a silent burst read with single-register reads
	// in the same cycle.
	FallbackSingle bool

	// Single polls with single-register reads only.
	Single bool
}

// Poller is a clock-driven reader over every configured device.
type Poller struct {
	cfg Config
	src Source
	log *zap.Logger

	mu     sync.RWMutex
	latest map[string]PollResult
}

// New creates a poller with immutable config.
func New(cfg Config, src Source, log *zap.Logger) (*Poller, error) {
	if src == nil {
		return nil, errors.New("poller: source required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		cfg:    cfg,
		src:    src,
		log:    log,
		latest: make(map[string]PollResult),
	}, nil
}

// PollOnce polls every device once. Devices on distinct ports are polled
// concurrently; results come back in port order.
func (p *Poller) PollOnce(ctx context.Context) []PollResult {
	devs := p.src.Devices()
	results := make([]PollResult, len(devs))

	var g errgroup.Group
	for i, dev := range devs {
		i, dev := i, dev
		g.Go(func() error {
			results[i] = p.pollDevice(ctx, dev)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	for _, r := range results {
		p.latest[r.Port] = r
	}
	p.mu.Unlock()

	return results
}

func (p *Poller) pollDevice(ctx context.Context, dev sensor.Device) PollResult {
	res := PollResult{Port: dev.Port, Device: dev}

	var err error
	if p.cfg.Single {
		res.Path = PathSingle
		res.Reading, err = p.src.ReadSingle(ctx, dev)
	} else {
		res.Path = PathBurst
		res.Reading, err = p.src.ReadBurst(ctx, dev)
		if err != nil && p.cfg.FallbackSingle && fault.Is(err, fault.DeviceNotResponding) {
			p.log.Debug("burst read silent, falling back to single reads",
				zap.String("port", dev.Port), zap.Uint8("address", dev.Address))
			res.Path = PathSingle
			res.Reading, err = p.src.ReadSingle(ctx, dev)
		}
	}
	res.At = time.Now()

	if err != nil {
		res.Err = err
		res.Reading = sensor.Reading{}
		p.log.Warn("poll failed",
			zap.String("device", dev.Name),
			zap.String("port", dev.Port),
			zap.Stringer("kind", fault.KindOf(err)),
			zap.Error(err))
	}
	return res
}

// Latest returns the last result per port, including failures.
func (p *Poller) Latest() map[string]PollResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]PollResult, len(p.latest))
	for k, v := range p.latest {
		out[k] = v
	}
	return out
}

// Readings returns the last successful reading per port.
func (p *Poller) Readings() map[string]sensor.Reading {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]sensor.Reading, len(p.latest))
	for k, v := range p.latest {
		if v.OK() {
			out[k] = v.Reading
		}
	}
	return out
}
