// Package simulate implements the command that evaluates the optical
// pipeline for one set of synthesis inputs.
package simulate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/simulation"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatCSV   = "csv"
)

type options struct {
	inputs simulation.Inputs
	format string
	lang   string
}

// Command creates the simulate command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Predict emission, colour and CRI for one nanocrystal",
		Example: `  nanolume simulate --radius 3.5 --time 30
  nanolume simulate -r 4 -t 60 --zr 0.1 --core-shell --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings, opts)
		},
	}

	setupFlags(cmd, &opts)
	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().Float64VarP(&opts.inputs.RadiusNM, "radius", "r", 0, "Nanocrystal radius in nm (2 to 6)")
	cmd.Flags().Float64VarP(&opts.inputs.ReactionTimeMin, "time", "t", 0, "Reaction time in minutes (30 to 90)")
	cmd.Flags().Float64Var(&opts.inputs.FWHMNM, "fwhm", 0, "Emission line width in nm (0 uses the configured default)")
	cmd.Flags().Float64Var(&opts.inputs.ZrConcentration, "zr", 0, "Zr dopant concentration in mmol (0 to 0.3)")
	cmd.Flags().BoolVar(&opts.inputs.CoreShell, "core-shell", false, "Apply the ZnS shell correction")
	cmd.Flags().StringVarP(&opts.format, "format", "f", FormatTable, "Output format: table, json, yaml or csv")
	cmd.Flags().StringVar(&opts.lang, "lang", "en", "Number formatting language for table output (BCP 47 tag)")

	_ = cmd.MarkFlagRequired("radius")
	_ = cmd.MarkFlagRequired("time")
}

func run(ctx context.Context, w io.Writer, settings *conf.Settings, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	engine, err := NewEngine(settings)
	if err != nil {
		return err
	}

	result, err := engine.Simulate(ctx, opts.inputs)
	if err != nil {
		return err
	}

	return WriteResult(w, result, opts.format, opts.lang)
}

// NewEngine builds an uncached engine for one-shot commands.
func NewEngine(settings *conf.Settings) (*simulation.Engine, error) {
	engine, err := simulation.NewEngine(settings.Model, simulation.Config{
		SweepWorkers: settings.Simulation.SweepWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing simulation engine: %w", err)
	}
	return engine, nil
}

// WriteResult renders result in the given format.
func WriteResult(w io.Writer, result simulation.Result, format, lang string) error {
	switch format {
	case FormatTable:
		return writeTable(w, result, lang)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeSpectrumCSV(w, result)
	default:
		return fmt.Errorf("unknown format %q, use table, json, yaml or csv", format)
	}
}

func writeTable(w io.Writer, r simulation.Result, lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("invalid language %q: %w", lang, err)
	}
	p := message.NewPrinter(tag)

	peak := r.Spectrum.Peak()
	rows := []struct {
		label string
		value string
	}{
		{"Peak wavelength", p.Sprintf("%.1f nm", r.PeakWavelengthNM)},
		{"Photon energy", p.Sprintf("%.3f eV", r.EnergyEV)},
		{"Colour", r.Color.DisplayColor + " " + r.Color.Hex},
		{"Chromaticity", p.Sprintf("x=%.4f y=%.4f", r.Color.X, r.Color.Y)},
		{"CRI", p.Sprintf("%d", r.CRI)},
		{"Spectrum maximum", p.Sprintf("%.0f nm", peak.WavelengthNM)},
		{"Samples", p.Sprintf("%d", len(r.Spectrum))},
	}

	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-18s %s\n", row.label, row.value); err != nil {
			return err
		}
	}
	return nil
}

func writeSpectrumCSV(w io.Writer, r simulation.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"wavelength_nm", "intensity"}); err != nil {
		return err
	}
	for _, s := range r.Spectrum {
		if err := cw.Write([]string{
			strconv.FormatFloat(s.WavelengthNM, 'f', -1, 64),
			strconv.FormatFloat(s.Intensity, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
