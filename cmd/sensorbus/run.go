// cmd/sensorbus/run.go
package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/config"
	"github.com/tamzrod/sensorbus/internal/frame"
	"github.com/tamzrod/sensorbus/internal/poller"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/status"
	"github.com/tamzrod/sensorbus/internal/writer"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Poll every sensor and deliver readings to the configured sinks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup(args[0])
			if err != nil {
				return err
			}
			defer log.Sync()
			return run(cmd.Context(), cfg, log)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// ---- poller ----
	reg := poller.BuildRegistry(cfg, log)
	p, eng, closeLines, err := poller.Build(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer closeLines()

	// ---- sinks ----
	sinks, err := writer.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sinks.Close()

	// ---- analog ----
	bank, err := buildBank(cfg, nil)
	if err != nil {
		return err
	}
	if bank != nil {
		every := time.Duration(cfg.Sensorbus.Analog.IntervalMs) * time.Millisecond
		go runAnalog(ctx, bank, every, sinks.Writer, log)
	}

	// ---- channel between poller and sinks ----
	out := make(chan poller.PollResult)
	go p.Run(ctx, out)

	log.Info("sensorbus running",
		zap.Int("devices", len(eng.Devices())),
		zap.Int("sinks", sinks.Writer.Len()),
		zap.Int("transducers", len(cfg.Sensorbus.Analog.Transducers)))

	o := newOrchestrator(sinks.Writer, sinks.Status, log)
	o.start(eng.Devices())

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()
	o.loop(ctx, out, secTicker.C)

	log.Info("sensorbus stopping")
	return nil
}

// orchestrator owns per-port status and delivers every poll result.
// It runs on a single goroutine.
type orchestrator struct {
	sink     writer.Writer
	statuses map[string]writer.StatusWriter
	trackers map[string]*status.Tracker
	log      *zap.Logger
}

func newOrchestrator(sink writer.Writer, statuses map[string]writer.StatusWriter, log *zap.Logger) *orchestrator {
	return &orchestrator{
		sink:     sink,
		statuses: statuses,
		trackers: make(map[string]*status.Tracker),
		log:      log,
	}
}

// start writes the boot status of every device (full block, identity
// re-assert).
func (o *orchestrator) start(devs []sensor.Device) {
	for _, d := range devs {
		t := status.NewTracker()
		code, _ := frame.BaudCode(d.BaudRate)
		t.SetIdentity(uint16(d.Address), code, 0)
		o.trackers[d.Port] = t
		o.writeStatus(d.Port)
	}
}

func (o *orchestrator) loop(ctx context.Context, out <-chan poller.PollResult, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return

		case res := <-out:
			o.handle(ctx, res)

		case <-tick:
			// seconds_in_error advances at 1 Hz while not OK
			for port, t := range o.trackers {
				if t.Tick() {
					o.writeStatus(port)
				}
			}
		}
	}
}

func (o *orchestrator) handle(ctx context.Context, res poller.PollResult) {
	// --- data delivery ---
	if err := o.sink.Write(ctx, writer.FromPoll(res)); err != nil {
		o.log.Warn("delivery failed", zap.String("port", res.Port), zap.Error(err))
	}

	// --- status update (device-level truth) ---
	t, ok := o.trackers[res.Port]
	if !ok {
		t = status.NewTracker()
		o.trackers[res.Port] = t
	}

	changed := t.Observe(res.Err)
	code, _ := frame.BaudCode(res.Device.BaudRate)
	zone := t.Snapshot().Zone
	if res.OK() {
		zone = uint16(res.Reading.Zone)
	}
	if t.SetIdentity(uint16(res.Device.Address), code, zone) {
		changed = true
	}

	if res.Err != nil {
		o.log.Warn("poll failed", zap.String("port", res.Port), zap.String("device", res.Device.Name), zap.Error(res.Err))
	}
	if changed {
		o.writeStatus(res.Port)
	}
}

func (o *orchestrator) writeStatus(port string) {
	sw := o.statuses[port]
	if sw == nil {
		return
	}
	if err := sw.WriteStatus(o.trackers[port].Snapshot()); err != nil {
		o.log.Warn("status write failed", zap.String("port", port), zap.Error(err))
	}
}

// runAnalog samples every transducer on a fixed cadence.
func runAnalog(ctx context.Context, bank *analog.Bank, every time.Duration, sink writer.Writer, log *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		sampleOnce(ctx, bank, sink, log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sampleOnce(ctx context.Context, bank *analog.Bank, sink writer.Writer, log *zap.Logger) {
	readings, errs := bank.ReadAll(ctx)
	now := time.Now()

	for _, r := range readings {
		if err := sink.Write(ctx, writer.FromAnalog(r.Name, r, nil, now)); err != nil {
			log.Warn("delivery failed", zap.String("transducer", r.Name), zap.Error(err))
		}
	}
	for name, sampleErr := range errs {
		log.Warn("sampling failed", zap.String("transducer", name), zap.Error(sampleErr))
		if err := sink.Write(ctx, writer.FromAnalog(name, analog.Reading{}, sampleErr, now)); err != nil {
			log.Warn("delivery failed", zap.String("transducer", name), zap.Error(err))
		}
	}
}
