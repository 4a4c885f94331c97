// Package sweep implements the command that simulates a radius × reaction
// time grid.
package sweep

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qdlab/nanolume/cmd/simulate"
	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/simulation"
)

type options struct {
	request simulation.SweepRequest
	workers int
	format  string
}

// Point is one row of the sweep output.
type Point struct {
	Inputs simulation.Inputs `json:"inputs"`
	Result simulation.Result `json:"result"`
}

// Command creates the sweep command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Simulate a grid of radii and reaction times",
		Example: `  nanolume sweep --radius-from 2 --radius-to 6 --radius-step 0.5 --time-from 30 --time-to 90 --time-step 15
  nanolume sweep --radius-from 3 --time-from 30 --zr 0.1 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings, opts)
		},
	}

	setupFlags(cmd, &opts)
	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options) {
	r := &opts.request
	cmd.Flags().Float64Var(&r.Radius.From, "radius-from", 0, "First radius in nm")
	cmd.Flags().Float64Var(&r.Radius.To, "radius-to", 0, "Last radius in nm (defaults to --radius-from)")
	cmd.Flags().Float64Var(&r.Radius.Step, "radius-step", 0, "Radius increment in nm, 0 for a single value")
	cmd.Flags().Float64Var(&r.ReactionTime.From, "time-from", 0, "First reaction time in minutes")
	cmd.Flags().Float64Var(&r.ReactionTime.To, "time-to", 0, "Last reaction time in minutes (defaults to --time-from)")
	cmd.Flags().Float64Var(&r.ReactionTime.Step, "time-step", 0, "Reaction time increment in minutes, 0 for a single value")
	cmd.Flags().Float64Var(&r.FWHMNM, "fwhm", 0, "Emission line width in nm (0 uses the configured default)")
	cmd.Flags().Float64Var(&r.ZrConcentration, "zr", 0, "Zr dopant concentration in mmol")
	cmd.Flags().BoolVar(&r.CoreShell, "core-shell", false, "Apply the ZnS shell correction")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel workers (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", simulate.FormatCSV, "Output format: csv or json")

	_ = cmd.MarkFlagRequired("radius-from")
	_ = cmd.MarkFlagRequired("time-from")
}

func run(ctx context.Context, w io.Writer, settings *conf.Settings, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.format != simulate.FormatCSV && opts.format != simulate.FormatJSON {
		return fmt.Errorf("unknown format %q, use csv or json", opts.format)
	}

	req := opts.request
	if req.Radius.To == 0 {
		req.Radius.To = req.Radius.From
	}
	if req.ReactionTime.To == 0 {
		req.ReactionTime.To = req.ReactionTime.From
	}

	inputs, err := req.Expand()
	if err != nil {
		return err
	}

	engine, err := simulate.NewEngine(settings)
	if err != nil {
		return err
	}

	results, err := engine.Sweep(ctx, inputs, opts.workers)
	if err != nil {
		return err
	}

	points := make([]Point, len(inputs))
	for i := range inputs {
		points[i] = Point{Inputs: inputs[i].WithDefaults(engine.Constants()), Result: results[i]}
	}

	if opts.format == simulate.FormatJSON {
		for i := range points {
			points[i].Result.Spectrum = nil
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}
	return writeCSV(w, points)
}

var csvHeader = []string{
	"radius_nm", "time_min", "fwhm_nm", "zr_mmol", "core_shell",
	"peak_nm", "energy_ev", "display_color", "hex", "x", "y", "cri",
}

func writeCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, p := range points {
		in, r := p.Inputs, p.Result
		if err := cw.Write([]string{
			f(in.RadiusNM), f(in.ReactionTimeMin), f(in.FWHMNM), f(in.ZrConcentration),
			strconv.FormatBool(in.CoreShell),
			f(r.PeakWavelengthNM), f(r.EnergyEV),
			r.Color.DisplayColor, r.Color.Hex, f(r.Color.X), f(r.Color.Y),
			strconv.Itoa(r.CRI),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
