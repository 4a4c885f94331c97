package lattice

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qdlab/nanolume/internal/conf"
	"github.com/qdlab/nanolume/internal/lattice"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	settings := &conf.Settings{Lattice: lattice.DefaultConstants()}

	var out bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLatticeXYZ(t *testing.T) {
	t.Parallel()

	out, err := execute(t)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 18)
	assert.Equal(t, "16", lines[0])
	assert.Contains(t, lines[1], "unit")
}

func TestLatticeJSONWithZr(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "--zr", "5", "-f", "json")
	require.NoError(t, err)

	var s lattice.Structure
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.InDelta(t, 1.0, s.DopantFraction, 0)
	assert.Equal(t, 0, s.Count(lattice.Gallium))
	assert.Equal(t, 4, s.Count(lattice.Zirconium))
}

func TestLatticeSeedIsReproducible(t *testing.T) {
	t.Parallel()

	a, err := execute(t, "-m", "cluster", "--dopant", "0.5", "--seed", "7")
	require.NoError(t, err)
	b, err := execute(t, "-m", "cluster", "--dopant", "0.5", "--seed", "7")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLatticeErrors(t *testing.T) {
	t.Parallel()

	for name, args := range map[string][]string{
		"both dopant flags": {"--dopant", "0.1", "--zr", "0.1"},
		"bad mode":          {"-m", "crystal"},
		"bad fraction":      {"--dopant", "2"},
		"bad format":        {"-f", "pdb"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := execute(t, args...)
			require.Error(t, err)
		})
	}
}
