// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/qdlab/nanolume/internal/lattice"
	"github.com/qdlab/nanolume/internal/logger"
	"github.com/qdlab/nanolume/internal/model"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "nanolume")

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	setModelDefaults(model.Default())
	setLatticeDefaults(lattice.DefaultConstants())

	viper.SetDefault("simulation.cachettl", 10*time.Minute)
	viper.SetDefault("simulation.sweepworkers", 0)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.bodylimit", "1M")
	viper.SetDefault("webserver.readtimeout", 15*time.Second)
	viper.SetDefault("webserver.writetimeout", 30*time.Second)
	viper.SetDefault("webserver.alloworigins", []string{"*"})
	viper.SetDefault("webserver.ratelimit.enabled", true)
	viper.SetDefault("webserver.ratelimit.rate", 20.0)
	viper.SetDefault("webserver.ratelimit.burst", 40)
	viper.SetDefault("webserver.ratelimit.expiresin", 3*time.Minute)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "nanolume.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "nanolume")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "nanolume")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "nanolume")
	viper.SetDefault("mqtt.clientid", "nanolume")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retain", false)
	viper.SetDefault("mqtt.connecttimeout", 10*time.Second)
	viper.SetDefault("mqtt.tls.insecureskipverify", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")
	viper.SetDefault("telemetry.debug", false)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
}

// setModelDefaults registers the calibrated constants under model.*.
func setModelDefaults(c model.Constants) {
	e := c.Emission
	viper.SetDefault("model.emission.bulk_gap_ev", e.BulkGapEV)
	viper.SetDefault("model.emission.confinement_ev_nm2", e.ConfinementEVNM2)
	viper.SetDefault("model.emission.coulomb_ev_nm", e.CoulombEVNM)
	viper.SetDefault("model.emission.stokes_shift_ev", e.StokesShiftEV)
	viper.SetDefault("model.emission.surface_stokes_ev_nm", e.SurfaceStokesEVNM)
	viper.SetDefault("model.emission.blue_shift_onset_min", e.BlueShiftOnsetMin)
	viper.SetDefault("model.emission.blue_shift_ev_per_min", e.BlueShiftEVPerMin)
	viper.SetDefault("model.emission.shell_shift_ev", e.ShellShiftEV)
	viper.SetDefault("model.emission.photon_ev_nm", e.PhotonEVNM)
	viper.SetDefault("model.emission.min_wavelength_nm", e.MinWavelengthNM)
	viper.SetDefault("model.emission.max_wavelength_nm", e.MaxWavelengthNM)

	s := c.Spectrum
	viper.SetDefault("model.spectrum.start_nm", s.StartNM)
	viper.SetDefault("model.spectrum.end_nm", s.EndNM)
	viper.SetDefault("model.spectrum.step_nm", s.StepNM)
	viper.SetDefault("model.spectrum.fwhm_to_sigma", s.FWHMToSigma)
	viper.SetDefault("model.spectrum.default_fwhm_nm", s.DefaultFWHMNM)

	d := c.Dopant
	viper.SetDefault("model.dopant.peak_nm", d.PeakNM)
	viper.SetDefault("model.dopant.fwhm_nm", d.FWHMNM)
	viper.SetDefault("model.dopant.gain", d.Gain)
	viper.SetDefault("model.dopant.saturation_mmol", d.SaturationMmol)

	x := c.Excitation
	viper.SetDefault("model.excitation.peak_nm", x.PeakNM)
	viper.SetDefault("model.excitation.fwhm_nm", x.FWHMNM)
	viper.SetDefault("model.excitation.bleed", x.Bleed)
	viper.SetDefault("model.excitation.quench_slope", x.QuenchSlope)
	viper.SetDefault("model.excitation.min_intensity_factor", x.MinIntensityFactor)

	r := c.CRI
	viper.SetDefault("model.cri.red_edge_nm", r.RedEdgeNM)
	viper.SetDefault("model.cri.green_edge_nm", r.GreenEdgeNM)
	viper.SetDefault("model.cri.blue_weight", r.BlueWeight)
	viper.SetDefault("model.cri.band_divisor", r.BandDivisor)
	viper.SetDefault("model.cri.base", r.Base)
	viper.SetDefault("model.cri.span", r.Span)
	viper.SetDefault("model.cri.max", r.Max)
}

func setLatticeDefaults(c lattice.Constants) {
	viper.SetDefault("lattice.a", c.A)
	viper.SetDefault("lattice.c", c.C)
	viper.SetDefault("lattice.anion_x", c.AnionX)
	viper.SetDefault("lattice.bond_cutoff", c.BondCutoffA)
	viper.SetDefault("lattice.cluster_cells", c.ClusterCells[:])
}
