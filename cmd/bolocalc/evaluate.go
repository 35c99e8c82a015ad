package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/bolocalc/core"
	"github.com/signalsfoundry/bolocalc/internal/config"
	"github.com/signalsfoundry/bolocalc/internal/logging"
	"github.com/signalsfoundry/bolocalc/internal/observability"
	"github.com/signalsfoundry/bolocalc/kb"
)

type evaluateOptions struct {
	file     string
	channels []string
	nobs     int
	ndet     int
	sample   bool
	sets     []string
	optics   bool
	jsonOut  bool
}

type paramChange struct {
	channel string // "*" for every channel
	key     string
	value   string
}

// parseSet splits CHANNEL:KEY=VALUE.
func parseSet(s string) (paramChange, error) {
	ch, rest, ok := strings.Cut(s, ":")
	if !ok {
		return paramChange{}, fmt.Errorf("--set %q: want CHANNEL:KEY=VALUE", s)
	}
	key, val, ok := strings.Cut(rest, "=")
	if !ok {
		return paramChange{}, fmt.Errorf("--set %q: want CHANNEL:KEY=VALUE", s)
	}
	ch, key, val = strings.TrimSpace(ch), strings.TrimSpace(key), strings.TrimSpace(val)
	if ch == "" || key == "" || val == "" {
		return paramChange{}, fmt.Errorf("--set %q: channel, key and value must be non-empty", s)
	}
	return paramChange{channel: ch, key: key, value: val}, nil
}

func newEvaluateCmd() *cobra.Command {
	var opts evaluateOptions
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate channel sensitivities for an instrument file",
		Example: `  bolocalc evaluate -f examples/instrument.yaml
  bolocalc evaluate -f examples/instrument.yaml --sample --nobs 100 --seed 7 --json
  bolocalc evaluate -f examples/instrument.yaml --set MF1:psat=12 --set '*:yield=0.9' --optics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if lvl, _ := flags.GetString("log-level"); lvl != "" {
				rt.LogLevel = lvl
			}
			if flags.Changed("seed") {
				seed, _ := flags.GetUint64("seed")
				rt.Seed = &seed
			}
			if flags.Changed("metrics-file") {
				rt.MetricsFile, _ = flags.GetString("metrics-file")
			}
			if flags.Changed("fres") {
				rt.FreqResolutionGHz, _ = flags.GetFloat64("fres")
			}
			if err := rt.Validate(); err != nil {
				return err
			}
			opts.jsonOut, _ = flags.GetBool("json")
			return runEvaluate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), rt, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Instrument file (YAML)")
	cmd.Flags().StringSliceVarP(&opts.channels, "channel", "c", nil, "Channels to evaluate (default: all)")
	cmd.Flags().IntVar(&opts.nobs, "nobs", 1, "Observations per detector")
	cmd.Flags().IntVar(&opts.ndet, "ndet", 1, "Detectors drawn per channel")
	cmd.Flags().BoolVar(&opts.sample, "sample", false, "Draw every parameter instead of using averages")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Change a parameter before evaluating, as CHANNEL:KEY=VALUE (CHANNEL may be *)")
	cmd.Flags().BoolVar(&opts.optics, "optics", false, "Also report per-element optical power")
	cmd.Flags().Uint64("seed", 0, "Seed every random draw; overrides BOLOCALC_SEED")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics here after the run; overrides BOLOCALC_METRICS_FILE")
	cmd.Flags().Float64("fres", 0, "Frequency grid step in GHz; overrides BOLOCALC_FREQ_RESOLUTION_GHZ")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEvaluate(ctx context.Context, out, errOut io.Writer, rt config.Runtime, opts evaluateOptions) (err error) {
	logCfg := rt.Logging()
	logCfg.Output = errOut
	ctx, log := logging.WithRunLogger(ctx, logging.New(logCfg))
	ctx = logging.ContextWithLogger(ctx, log)

	tracingCfg := rt.Tracing()
	tracingCfg.Output = errOut
	shutdown, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewEngineCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() {
		if rt.MetricsFile == "" {
			return
		}
		if werr := collector.WriteTextfile(rt.MetricsFile); werr != nil && err == nil {
			err = werr
		}
	}()

	defer func() {
		if err == nil {
			return
		}
		var perr *core.ParameterError
		if errors.As(err, &perr) {
			log.Error(ctx, "evaluation aborted",
				logging.String("parameter", perr.Name),
				logging.String("value", perr.Value),
				logging.Err(perr.Err))
			return
		}
		log.Error(ctx, "evaluation aborted", logging.Err(err))
	}()

	inst, err := core.LoadInstrumentFile(opts.file)
	if err != nil {
		return err
	}
	if rt.Seed != nil {
		inst.Seed(*rt.Seed)
		log.Debug(ctx, "seeded random draws", logging.Any("seed", *rt.Seed))
	}

	base, err := kb.FromInstrument(inst)
	if err != nil {
		return err
	}
	unsubscribe := base.Subscribe(func(ev kb.Event) {
		if ev.Type != kb.EventParameterChanged {
			return
		}
		collector.ObserveParameterChange(ev.Param.Name())
		log.Info(ctx, "parameter changed",
			logging.String("channel", ev.Channel),
			logging.String("parameter", ev.Param.Name()),
			logging.String("value", ev.Value))
	})
	defer unsubscribe()

	all := base.ListChannels()
	collector.SetChannels(len(all))

	for _, s := range opts.sets {
		change, err := parseSet(s)
		if err != nil {
			return err
		}
		targets := []string{change.channel}
		if change.channel == "*" {
			targets = targets[:0]
			for _, ch := range all {
				targets = append(targets, ch.Name)
			}
		}
		for _, name := range targets {
			if _, err := base.ChangeParam(name, change.key, change.value); err != nil {
				return fmt.Errorf("channel %s: %w", name, err)
			}
		}
	}

	names := opts.channels
	if len(names) == 0 {
		for _, ch := range all {
			names = append(names, ch.Name)
		}
	}

	engine := core.NewSensitivity(core.WithLogger(log), core.WithRecorder(collector))
	aopts := core.AssemblyOptions{
		NObs:           opts.nobs,
		NDet:           opts.ndet,
		Sample:         opts.sample,
		FreqResolution: rt.FreqResolutionHz(),
	}

	summaries := make([]channelSummary, 0, len(names))
	for _, name := range names {
		var sum channelSummary
		err := base.View(name, func(ch *core.Channel) error {
			t, in, err := core.Assemble(ch, aopts)
			if err != nil {
				return fmt.Errorf("channel %s: %w", ch.Name, err)
			}
			res, err := engine.Evaluate(ctx, t, in)
			if err != nil {
				return err
			}
			sum = summarize(res)
			if opts.optics {
				tab, err := core.OpticalPowers(t)
				if err != nil {
					return fmt.Errorf("channel %s: %w", ch.Name, err)
				}
				sum.Optics = summarizeOptics(tab)
			}
			return nil
		})
		if err != nil {
			return err
		}
		summaries = append(summaries, sum)
	}
	log.Info(ctx, "evaluation finished", logging.Int("channels", len(summaries)))

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	for _, sum := range summaries {
		if _, err := fmt.Fprintln(out, renderSummary(sum)); err != nil {
			return err
		}
		if opts.optics {
			if _, err := fmt.Fprintln(out, renderOptics(sum.Channel, sum.Optics)); err != nil {
				return err
			}
		}
	}
	return nil
}
