// Package lattice implements the command that writes AgGaS₂ point clouds.
package lattice

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/lattice"
)

type options struct {
	mode   string
	dopant float64
	zr     float64
	seed   uint64
	format string
}

// Command creates the lattice command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "Generate an AgGaS₂ unit cell or cluster",
		Long: "Generate a chalcopyrite AgGaS₂ point cloud with optional Ga→Zr substitution.\n" +
			"The XYZ output can be opened in most molecular viewers.",
		Example: `  nanolume lattice --mode cluster --zr 0.1 --format xyz > cluster.xyz`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("zr") {
				if cmd.Flags().Changed("dopant") {
					return fmt.Errorf("--dopant and --zr are mutually exclusive")
				}
				opts.dopant = lattice.DopantFractionFromConcentration(opts.zr)
			}
			return run(cmd.OutOrStdout(), settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(lattice.ModeUnit), "Structure to generate: unit or cluster")
	cmd.Flags().Float64Var(&opts.dopant, "dopant", 0, "Probability that a Ga site is replaced by Zr (0 to 1)")
	cmd.Flags().Float64Var(&opts.zr, "zr", 0, "Zr concentration in mmol, mapped onto the substitution probability")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Random seed for dopant placement")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "xyz", "Output format: xyz or json")

	return cmd
}

func run(w io.Writer, settings *conf.Settings, opts options) error {
	if opts.format != "xyz" && opts.format != "json" {
		return fmt.Errorf("unknown format %q, use xyz or json", opts.format)
	}

	consts := settings.Lattice
	s, err := lattice.Generate(lattice.Options{
		Mode:           lattice.Mode(opts.mode),
		DopantFraction: opts.dopant,
		Seed:           opts.seed,
		Constants:      &consts,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return json.NewEncoder(w).Encode(s)
	}
	return s.WriteXYZ(w)
}
