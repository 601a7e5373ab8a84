package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ast-ral/divine/application/divine"
	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/host"
	"github.com/ast-ral/divine/sim"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the stored artifact against a target",
		Long: `Run the stored artifact. Each time the guest calls back for target text it
receives either the fixed --text or, with --simulate, the output of a
simulated fragment script sharing its random source with the guest.

The response is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	cmd.Flags().String("text", "", "Fixed target text")
	cmd.Flags().Bool("simulate", false, "Use a simulated fragment script as the target")
	cmd.Flags().Uint64("seed", 0, "Simulation seed")
	cmd.Flags().Duration("timeout", 0, "Invocation time budget (default: runtime.timeout from config)")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	text, _ := cmd.Flags().GetString("text")
	simulate, _ := cmd.Flags().GetBool("simulate")
	seed, _ := cmd.Flags().GetUint64("seed")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var (
		req     entities.Request
		runOpts []host.Option
	)
	switch {
	case simulate:
		rng := sim.NewRNG(sim.DriverSeed(seed))
		req.Target = sim.NewDriverScript(rng).Target()
		runOpts = append(runOpts, host.WithRandom(rng))
	case cmd.Flags().Changed("text"):
		req.Target = func(context.Context) (string, error) { return text, nil }
	}
	if timeout > 0 {
		runOpts = append(runOpts, host.WithTimeout(timeout))
	}

	a, err := newApp(cmd, divine.WithRunOptions(runOpts...))
	if err != nil {
		return err
	}
	defer a.Close()

	resp, runErr := a.service.Handle(cmd.Context(), a.caller, req)

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return runErr
}
