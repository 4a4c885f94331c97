// Package lattice generates chalcopyrite AgGaS₂ point clouds, optionally
// Zr-doped, for 3D visualisation.
//
// The conventional I-42d cell holds 16 atoms: Ag on 4a, Ga on 4b and S on
// 8d (x, ¼, ⅛). Positions are in ångström and centred on the centroid of
// the returned structure.
package lattice

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/qdlab/nanolume/internal/errors"
)

// Mode selects how much of the crystal is generated.
type Mode string

const (
	// ModeUnit is a single conventional cell.
	ModeUnit Mode = "unit"
	// ModeCluster is a 3×3×2 supercell cropped to a sphere.
	ModeCluster Mode = "cluster"
)

// Species is a chemical element symbol.
type Species string

const (
	Silver    Species = "Ag"
	Gallium   Species = "Ga"
	Zirconium Species = "Zr"
	Sulfur    Species = "S"
)

// Vec3 is a cartesian position in ångström.
type Vec3 [3]float64

// Dist returns the euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 {
	dx, dy, dz := v[0]-o[0], v[1]-o[1], v[2]-o[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Atom is one site of the structure.
type Atom struct {
	Position Vec3    `json:"position"`
	Species  Species `json:"species"`
}

// Bond joins a cation to a neighbouring sulfur.
type Bond struct {
	Start Vec3 `json:"start"`
	End   Vec3 `json:"end"`
}

// Structure is a generated point cloud.
type Structure struct {
	Mode           Mode    `json:"mode"`
	Atoms          []Atom  `json:"atoms"`
	Bonds          []Bond  `json:"bonds"`
	DopantFraction float64 `json:"dopantFraction"`
	Seed           uint64  `json:"seed"`
}

// Count returns the number of atoms of the given species.
func (s Structure) Count(sp Species) int {
	n := 0
	for _, a := range s.Atoms {
		if a.Species == sp {
			n++
		}
	}
	return n
}

// Constants describe the crystal. Lengths are in ångström, AnionX is the
// fractional x coordinate of the 8d sulfur site and ClusterCells the
// supercell repeats used by ModeCluster.
type Constants struct {
	A            float64 `json:"a" yaml:"a" mapstructure:"a"`
	C            float64 `json:"c" yaml:"c" mapstructure:"c"`
	AnionX       float64 `json:"anion_x" yaml:"anion_x" mapstructure:"anion_x"`
	BondCutoffA  float64 `json:"bond_cutoff" yaml:"bond_cutoff" mapstructure:"bond_cutoff"`
	ClusterCells [3]int  `json:"cluster_cells" yaml:"cluster_cells" mapstructure:"cluster_cells"`
}

// DefaultConstants returns the AgGaS₂ room-temperature lattice.
func DefaultConstants() Constants {
	return Constants{
		A:            5.757,
		C:            10.304,
		AnionX:       0.2907,
		BondCutoffA:  2.7,
		ClusterCells: [3]int{3, 3, 2},
	}
}

// Options control Generate. A nil Constants uses DefaultConstants.
type Options struct {
	Mode           Mode
	DopantFraction float64
	Seed           uint64
	Constants      *Constants
}

// DopantFractionFromConcentration maps a Zr concentration in mmol onto the
// Ga substitution probability, clamped to [0, 1].
func DopantFractionFromConcentration(zrConc float64) float64 {
	return math.Max(0, math.Min(1, zrConc))
}

type site struct {
	species Species
	frac    Vec3
}

func basis(x float64) []site {
	return []site{
		{Silver, Vec3{0, 0, 0}},
		{Silver, Vec3{0, 0.5, 0.25}},
		{Silver, Vec3{0.5, 0.5, 0.5}},
		{Silver, Vec3{0.5, 0, 0.75}},

		{Gallium, Vec3{0, 0, 0.5}},
		{Gallium, Vec3{0, 0.5, 0.75}},
		{Gallium, Vec3{0.5, 0.5, 0}},
		{Gallium, Vec3{0.5, 0, 0.25}},

		{Sulfur, Vec3{x, 0.25, 0.125}},
		{Sulfur, Vec3{1 - x, 0.75, 0.125}},
		{Sulfur, Vec3{0.75, x, 0.875}},
		{Sulfur, Vec3{0.25, 1 - x, 0.875}},
		{Sulfur, Vec3{x + 0.5, 0.75, 0.625}},
		{Sulfur, Vec3{0.5 - x, 0.25, 0.625}},
		{Sulfur, Vec3{0.25, x + 0.5, 0.375}},
		{Sulfur, Vec3{0.75, 0.5 - x, 0.375}},
	}
}

// Generate builds the structure described by opts. The same options always
// produce the same structure.
func Generate(opts Options) (Structure, error) {
	c := DefaultConstants()
	if opts.Constants != nil {
		c = *opts.Constants
	}

	if err := validate(opts, c); err != nil {
		return Structure{}, err
	}

	var atoms []Atom
	switch opts.Mode {
	case ModeUnit:
		atoms = supercell(c, 1, 1, 1)
	case ModeCluster:
		n := c.ClusterCells
		atoms = supercell(c, n[0], n[1], n[2])
		center := Vec3{float64(n[0]) * c.A / 2, float64(n[1]) * c.A / 2, float64(n[2]) * c.C / 2}
		radius := math.Min(float64(n[0])*c.A, float64(n[2])*c.C) / 2
		atoms = crop(atoms, center, radius)
	}

	substitute(atoms, opts.DopantFraction, opts.Seed)
	centre(atoms)

	return Structure{
		Mode:           opts.Mode,
		Atoms:          atoms,
		Bonds:          bonds(atoms, c.BondCutoffA),
		DopantFraction: opts.DopantFraction,
		Seed:           opts.Seed,
	}, nil
}

func validate(opts Options, c Constants) error {
	if opts.Mode != ModeUnit && opts.Mode != ModeCluster {
		return errors.Newf("unknown lattice mode %q", opts.Mode).
			Component("lattice").
			Category(errors.CategoryValidation).
			Context("mode", string(opts.Mode)).
			Build()
	}
	if math.IsNaN(opts.DopantFraction) || opts.DopantFraction < 0 || opts.DopantFraction > 1 {
		return errors.Newf("dopant fraction %g outside [0, 1]", opts.DopantFraction).
			Component("lattice").
			Category(errors.CategoryValidation).
			Build()
	}
	if c.A <= 0 || c.C <= 0 || c.BondCutoffA <= 0 {
		return errors.Newf("invalid lattice constants a=%g c=%g cutoff=%g", c.A, c.C, c.BondCutoffA).
			Component("lattice").
			Category(errors.CategoryLattice).
			Build()
	}
	for _, n := range c.ClusterCells {
		if n <= 0 {
			return errors.Newf("invalid cluster cells %v", c.ClusterCells).
				Component("lattice").
				Category(errors.CategoryLattice).
				Build()
		}
	}
	return nil
}

func supercell(c Constants, nx, ny, nz int) []Atom {
	b := basis(c.AnionX)
	atoms := make([]Atom, 0, nx*ny*nz*len(b))
	for i := range nx {
		for j := range ny {
			for k := range nz {
				for _, s := range b {
					pos := Vec3{
						(s.frac[0] + float64(i)) * c.A,
						(s.frac[1] + float64(j)) * c.A,
						(s.frac[2] + float64(k)) * c.C,
					}
					atoms = append(atoms, Atom{Position: pos, Species: s.species})
				}
			}
		}
	}
	return atoms
}

func crop(atoms []Atom, center Vec3, radius float64) []Atom {
	kept := atoms[:0]
	for _, a := range atoms {
		if a.Position.Dist(center) <= radius {
			kept = append(kept, a)
		}
	}
	return kept
}

// substitute replaces each Ga by Zr with probability fraction, drawing from
// a PCG stream seeded by seed.
func substitute(atoms []Atom, fraction float64, seed uint64) {
	if fraction == 0 {
		return
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range atoms {
		if atoms[i].Species == Gallium && rng.Float64() < fraction {
			atoms[i].Species = Zirconium
		}
	}
}

func centre(atoms []Atom) {
	if len(atoms) == 0 {
		return
	}
	var sum Vec3
	for _, a := range atoms {
		for d := range 3 {
			sum[d] += a.Position[d]
		}
	}
	n := float64(len(atoms))
	for i := range atoms {
		for d := range 3 {
			atoms[i].Position[d] -= sum[d] / n
		}
	}
}

func bonds(atoms []Atom, cutoff float64) []Bond {
	var out []Bond
	for _, cation := range atoms {
		if cation.Species == Sulfur {
			continue
		}
		for _, anion := range atoms {
			if anion.Species != Sulfur {
				continue
			}
			if cation.Position.Dist(anion.Position) < cutoff {
				out = append(out, Bond{Start: cation.Position, End: anion.Position})
			}
		}
	}
	return out
}

// WriteXYZ writes the structure in the plain XYZ format understood by most
// molecular viewers.
func (s Structure) WriteXYZ(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d\nAgGaS2 %s dopant=%.4f seed=%d\n", len(s.Atoms), s.Mode, s.DopantFraction, s.Seed); err != nil {
		return err
	}
	for _, a := range s.Atoms {
		if _, err := fmt.Fprintf(w, "%-2s %12.6f %12.6f %12.6f\n", a.Species, a.Position[0], a.Position[1], a.Position[2]); err != nil {
			return err
		}
	}
	return nil
}
