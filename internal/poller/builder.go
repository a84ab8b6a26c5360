// internal/poller/builder.go
package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/sensorbus/internal/config"
	"github.com/tamzrod/sensorbus/internal/simdev"
	"github.com/tamzrod/sensorbus/internal/transport"
)

// BuildRegistry creates the line registry for a config. Ports using the
// simulator driver get a simulated sensor at the configured address.
func BuildRegistry(c *cfg.Config, log *zap.Logger, extra ...transport.Option) *transport.Registry {
	sb := c.Sensorbus

	opts := []transport.Option{transport.WithLogger(log)}
	if sb.Poll.SettleMs != nil {
		opts = append(opts, transport.WithSettleDelay(time.Duration(*sb.Poll.SettleMs)*time.Millisecond))
	}

	bus := simdev.NewBus()
	for _, d := range sb.Devices {
		p, ok := c.Port(d.Port)
		if !ok || p.Driver != simdev.DriverName {
			continue
		}
		bus.Attach(d.Port, simdev.New(d.Address, p.BaudRate))
	}
	opts = append(opts, transport.WithDriver(simdev.DriverName, bus))

	return transport.NewRegistry(append(opts, extra...)...)
}

// Build opens every configured line, fills the device table and applies
// opt-in startup writes. The returned closer closes every line.
// Assumes config has already passed Validate and Normalize.
func Build(ctx context.Context, c *cfg.Config, reg *transport.Registry, log *zap.Logger) (*Poller, *Engine, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sb := c.Sensorbus

	closeAll := reg.CloseAll

	for _, p := range sb.Ports {
		if err := reg.Open(ctx, p.LineConfig()); err != nil {
			_ = closeAll()
			return nil, nil, nil, fmt.Errorf("poller: open %s: %w", p.Port, err)
		}
	}

	eng := NewEngine(reg, WithAttempts(sb.Poll.Attempts), WithEngineLogger(log))

	for _, d := range sb.Devices {
		p, _ := c.Port(d.Port)
		dev := d.Device(p.BaudRate)
		if err := eng.Configure(dev); err != nil {
			_ = closeAll()
			return nil, nil, nil, err
		}

		// Startup writes are best effort: a sensor that is offline at boot
		// is still polled.
		if d.OptimizeForSpeed {
			if err := eng.OptimizeForSpeed(ctx, dev); err != nil {
				log.Warn("optimize for speed failed", zap.String("device", dev.Name), zap.Error(err))
			}
		}
		if d.HighSpeed {
			if err := eng.EnableHighSpeedMode(ctx, dev); err != nil {
				log.Warn("high-speed mode failed", zap.String("device", dev.Name), zap.Error(err))
			}
		}
	}

	p, err := New(Config{
		Interval:       time.Duration(sb.Poll.IntervalMs) * time.Millisecond,
		FallbackSingle: sb.Poll.FallbackSingle,
		Single:         sb.Poll.Single,
	}, eng, log)
	if err != nil {
		_ = closeAll()
		return nil, nil, nil, err
	}

	return p, eng, closeAll, nil
}
