package emission

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qdlab/nanolume/internal/model"
)

func rawEnergy(r float64) float64 {
	return 2.73 + 0.8/(r*r) - 0.3/r - (0.65 + 0.1/r)
}

func TestComputeMatchesClosedForm(t *testing.T) {
	p := ComputeDefault(3.5, 30, false)

	raw := rawEnergy(3.5)
	assert.InDelta(t, 2.031, p.EnergyEV, 1e-12)
	assert.InDelta(t, math.Round(raw*1000)/1000, p.EnergyEV, 1e-12)

	assert.InDelta(t, 610.5, p.PeakWavelengthNM, 1e-9)
	assert.InDelta(t, 1240/raw, p.PeakWavelengthNM, 0.05)
}

func TestComputeKnownPoints(t *testing.T) {
	tests := []struct {
		name       string
		radius     float64
		time       float64
		coreShell  bool
		wantEnergy float64
		wantPeak   float64
	}{
		{"small fresh particle", 2, 30, false, 2.08, 596.2},
		{"small particle long reaction", 2, 90, false, 2.25, 551.1},
		{"large particle", 6, 30, false, 2.036, 609.2},
		{"large core-shell particle", 6, 30, true, 1.946, 637.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeDefault(tt.radius, tt.time, tt.coreShell)
			assert.InDelta(t, tt.wantEnergy, p.EnergyEV, 1e-9)
			assert.InDelta(t, tt.wantPeak, p.PeakWavelengthNM, 1e-9)
		})
	}
}

func TestCoreShellShiftsEnergyDown(t *testing.T) {
	for _, r := range []float64{2.5, 3.5, 5} {
		bare := ComputeDefault(r, 40, false)
		shell := ComputeDefault(r, 40, true)

		assert.InDelta(t, 0.09, bare.EnergyEV-shell.EnergyEV, 1e-9, "radius %v", r)
		assert.Greater(t, shell.PeakWavelengthNM, bare.PeakWavelengthNM)
	}
}

func TestReactionTimeBlueShiftIsMonotonic(t *testing.T) {
	for _, r := range []float64{2, 3.5, 6} {
		for _, shell := range []bool{false, true} {
			prev := ComputeDefault(r, 30, shell)
			for minutes := 31.0; minutes <= 90; minutes++ {
				cur := ComputeDefault(r, minutes, shell)
				assert.GreaterOrEqual(t, cur.EnergyEV, prev.EnergyEV)
				assert.LessOrEqual(t, cur.PeakWavelengthNM, prev.PeakWavelengthNM)
				prev = cur
			}
		}
	}
}

func TestNoBlueShiftBeforeOnset(t *testing.T) {
	assert.Equal(t, ComputeDefault(4, 30, false), ComputeDefault(4, 10, false))
	assert.Equal(t, ComputeDefault(4, 30, false), ComputeDefault(4, 0, false))
}

func TestWavelengthClamp(t *testing.T) {
	// Very small particles push the energy far into the UV.
	uv := ComputeDefault(0.5, 30, false)
	assert.InDelta(t, 400, uv.PeakWavelengthNM, 0)
	assert.InDelta(t, 4.48, uv.EnergyEV, 1e-9)

	// A low bulk gap drives the line past the red limit.
	c := model.Default()
	c.Emission.BulkGapEV = 2.0
	ir := Compute(c, 3.5, 30, false)
	assert.InDelta(t, 700, ir.PeakWavelengthNM, 0)
	assert.Less(t, 1240/ir.EnergyEV, 1000.0)
	assert.Greater(t, 1240/ir.EnergyEV, 700.0)
}

func TestRounding(t *testing.T) {
	for r := 2.0; r <= 6; r += 0.25 {
		p := ComputeDefault(r, 47, r > 4)
		assert.InDelta(t, p.EnergyEV, math.Round(p.EnergyEV*1000)/1000, 1e-12)
		assert.InDelta(t, p.PeakWavelengthNM, math.Round(p.PeakWavelengthNM*10)/10, 1e-9)
	}
}
