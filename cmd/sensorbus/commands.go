// cmd/sensorbus/commands.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamzrod/sensorbus/internal/config"
	"github.com/tamzrod/sensorbus/internal/poller"
	"github.com/tamzrod/sensorbus/internal/reconfig"
	"github.com/tamzrod/sensorbus/internal/sensor"
	"github.com/tamzrod/sensorbus/internal/transport"
)

// ---- ports ----

func newPortsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List attached USB serial adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := g.logger(nil)
			if err != nil {
				return err
			}
			defer log.Sync()

			ports, err := transport.NewRegistry(transport.WithLogger(log)).ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			return nil
		},
	}
}

// session is one short-lived engine over a config, for the one-shot commands.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	reg   *transport.Registry
	poll  *poller.Poller
	eng   *poller.Engine
	close func() error
}

func openSession(ctx context.Context, g *globalFlags, path string) (*session, error) {
	cfg, log, err := g.setup(path)
	if err != nil {
		return nil, err
	}
	// one-shot commands never apply startup writes
	for i := range cfg.Sensorbus.Devices {
		cfg.Sensorbus.Devices[i].OptimizeForSpeed = false
		cfg.Sensorbus.Devices[i].HighSpeed = false
	}
	reg := poller.BuildRegistry(cfg, log)
	p, eng, closeLines, err := poller.Build(ctx, cfg, reg, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, reg: reg, poll: p, eng: eng, close: closeLines}, nil
}

func (s *session) Close() {
	if err := s.close(); err != nil {
		s.log.Warn("close lines failed", zap.Error(err))
	}
	_ = s.log.Sync()
}

func (s *session) device(port string) (sensor.Device, error) {
	dev, ok := s.eng.Device(port)
	if !ok {
		return sensor.Device{}, fmt.Errorf("no device configured on port %q", port)
	}
	return dev, nil
}

// ---- read ----

func newReadCmd(g *globalFlags) *cobra.Command {
	var (
		port   string
		single bool
		caps   bool
	)
	cmd := &cobra.Command{
		Use:   "read <config.yaml>",
		Short: "Read one sensor once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, g, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			dev, err := s.device(port)
			if err != nil {
				return err
			}
			if caps {
				return printJSON(cmd.OutOrStdout(), s.eng.Capabilities(dev))
			}

			read := s.eng.ReadBurst
			if single {
				read = s.eng.ReadSingle
			}
			r, err := read(ctx, dev)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port of the sensor")
	cmd.Flags().BoolVar(&single, "single", false, "use single-register reads")
	cmd.Flags().BoolVar(&caps, "capabilities", false, "print model capabilities instead of reading")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

// ---- reconfigure ----

func newReconfigureCmd(g *globalFlags) *cobra.Command {
	var (
		port string
		addr uint8
		baud int
	)
	cmd := &cobra.Command{
		Use:   "reconfigure <config.yaml>",
		Short: "Change a sensor's bus address and/or baud rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, g, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			seq, err := reconfig.New(s.eng, s.reg, reconfig.WithLogger(s.log))
			if err != nil {
				return err
			}
			res, err := seq.Change(ctx, port, reconfig.Target{Address: addr, BaudRate: baud})
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s: %s\n", port, res.From, res.To, res.State)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "update the config file to the new address and baud rate")
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port of the sensor")
	cmd.Flags().Uint8Var(&addr, "address", 0, "new bus address (0 keeps the current one)")
	cmd.Flags().IntVar(&baud, "baud", 0, "new baud rate (0 keeps the current one)")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

// ---- speed ----

func newSpeedCmd(g *globalFlags) *cobra.Command {
	var (
		port      string
		highSpeed bool
	)
	cmd := &cobra.Command{
		Use:   "speed <config.yaml>",
		Short: "Raise a sensor's output rate, optionally switching to high-speed mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, g, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			dev, err := s.device(port)
			if err != nil {
				return err
			}
			if err := s.eng.OptimizeForSpeed(ctx, dev); err != nil {
				return err
			}
			if highSpeed {
				if err := s.eng.EnableHighSpeedMode(ctx, dev); err != nil {
					return err
				}
			}
			dev, _ = s.eng.Device(port)
			return printJSON(cmd.OutOrStdout(), s.eng.Capabilities(dev))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port of the sensor")
	cmd.Flags().BoolVar(&highSpeed, "high-speed", false, "also enable high-speed sampling mode")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}
