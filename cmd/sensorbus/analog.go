// cmd/sensorbus/analog.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/sensorbus/internal/analog"
	"github.com/tamzrod/sensorbus/internal/config"
)

// buildBank creates the transducer bank. It returns nil when no transducer
// is configured.
func buildBank(c *config.Config, sampler analog.Sampler) (*analog.Bank, error) {
	ac := c.Sensorbus.Analog
	if len(ac.Transducers) == 0 {
		return nil, nil
	}
	if sampler == nil {
		sampler = analog.ExecSampler{
			Binary:  ac.Sampler,
			Timeout: time.Duration(ac.TimeoutMs) * time.Millisecond,
		}
	}
	cfgs := make([]analog.TransducerConfig, 0, len(ac.Transducers))
	for _, t := range ac.Transducers {
		cfgs = append(cfgs, t.Transducer())
	}
	return analog.NewBank(sampler, cfgs)
}

func newAnalogCmd(g *globalFlags) *cobra.Command {
	var (
		transducer string
		reference  float64
	)
	cmd := &cobra.Command{
		Use:   "analog <config.yaml>",
		Short: "Sample every pressure transducer once, or self-check one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup(args[0])
			if err != nil {
				return err
			}
			defer log.Sync()

			bank, err := buildBank(cfg, nil)
			if err != nil {
				return err
			}
			if bank == nil {
				return fmt.Errorf("no transducers configured")
			}

			if cmd.Flags().Changed("selfcheck") {
				ch, ok := bank.Channel(transducer)
				if !ok {
					return fmt.Errorf("unknown transducer %q (have %v)", transducer, bank.Names())
				}
				res, err := ch.SelfCheck(cmd.Context(), reference)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if !res.Pass {
					return fmt.Errorf("self-check failed: deviation %.4f exceeds %.2f", res.Deviation, analog.Tolerance)
				}
				return nil
			}

			readings, errs := bank.ReadAll(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), readings); err != nil {
				return err
			}
			for name, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d transducers failed", len(errs), len(bank.Names()))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&transducer, "transducer", "", "transducer name for --selfcheck")
	cmd.Flags().Float64Var(&reference, "selfcheck", 0, "reference pressure in PSI measured by other means")
	cmd.MarkFlagsRequiredTogether("selfcheck", "transducer")
	return cmd
}
