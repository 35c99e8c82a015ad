// Command bolocalc evaluates the sensitivity of bolometric detector arrays
// described by an instrument file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/bolocalc/model"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bolocalc",
		Short: "Sensitivity calculator for bolometric detector arrays",
		Long: `bolocalc loads an instrument file, propagates every optical element's
emission through the chain to the detectors, and reports optical power,
NEP, NET, array NET and map depth per channel.

Runtime settings come from BOLOCALC_* environment variables; flags win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides BOLOCALC_LOG_LEVEL")

	rootCmd.AddCommand(
		newVersionCmd(),
		newParamsCmd(),
		newEvaluateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bolocalc version %s\n", version)
			return err
		},
	}
}

type paramInfo struct {
	Key  string   `json:"key"`
	Name string   `json:"name"`
	Unit string   `json:"unit"`
	Kind string   `json:"kind"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

func bound(x float64) *float64 {
	if math.IsNaN(x) {
		return nil
	}
	return &x
}

func newParamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "List the standard parameters with their units and bounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			std := model.StandardParams()
			infos := make([]paramInfo, 0, len(std))
			for _, p := range std {
				infos = append(infos, paramInfo{
					Key:  p.Key,
					Name: p.Name,
					Unit: p.Unit,
					Kind: p.Kind.String(),
					Min:  bound(p.Min),
					Max:  bound(p.Max),
				})
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			rows := make([][]string, 0, len(infos))
			for _, p := range infos {
				rows = append(rows, []string{p.Key, p.Name, p.Unit, p.Kind, boundString(p.Min), boundString(p.Max)})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Name", "Unit", "Kind", "Min", "Max"}, rows))
			return err
		},
	}
}

func boundString(x *float64) string {
	if x == nil {
		return "-"
	}
	return strconv.FormatFloat(*x, 'g', -1, 64)
}
