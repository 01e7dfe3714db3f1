// Package physics provides the physical constants, atomic masses, and
// statistical mechanics used to generate deposition velocities and
// engine thermostat parameters.
package physics

// Fundamental constants in SI units.
const (
	// BoltzmannConstant relates temperature to energy, in Joules per Kelvin.
	BoltzmannConstant = 1.380658e-23

	// AtomicMassUnitKg converts atomic mass units to kilograms.
	AtomicMassUnitKg = 1.66053906660e-27
)

// Nose-Hoover coupling fit parameters. The damping constant that produces
// canonical temperature fluctuations follows a fitted power law in the
// canonical variance: damping = (ln(variance) - ln(FitA)) / FitB, floored
// at MinimumDamping and rounded to DampingDecimals places.
const (
	// NoseHooverFitA is the prefactor of the fitted power law.
	NoseHooverFitA = 610.0

	// NoseHooverFitB is the exponent slope of the fitted power law.
	NoseHooverFitB = -49.6

	// MinimumNoseHooverDamping is the smallest coupling constant issued
	// to the thermostat.
	MinimumNoseHooverDamping = 0.0001

	// NoseHooverDampingDecimals is the rounding precision of the coupling
	// constant.
	NoseHooverDampingDecimals = 6
)
