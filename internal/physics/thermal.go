package physics

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
)

// MaxwellBoltzmannSigma returns the per-axis standard deviation of the
// Maxwell-Boltzmann velocity distribution, sqrt(kB T / m), in metres per
// second for a temperature in Kelvin and a mass in kilograms.
func MaxwellBoltzmannSigma(temperatureK, massKg float64) float64 {
	return math.Sqrt(BoltzmannConstant * temperatureK / massKg)
}

// VelocityFromNormal draws a velocity in metres per second from a normal
// distribution centred on mean with the Maxwell-Boltzmann sigma. A
// non-positive mass yields zero velocity with a warning; this happens when
// a moment of inertia is substituted for the mass and the molecule has no
// extent about that axis.
func VelocityFromNormal(rng *rand.Rand, temperatureK, massKg, mean float64, log *slog.Logger) float64 {
	if massKg <= 0 {
		if log != nil {
			log.Warn("non-positive mass in velocity generation, returning zero velocity",
				"mass_kg", massKg,
				"hint", "a zero moment of inertia means the deposited molecule is on-axis")
		}
		return 0
	}
	return mean + rng.NormFloat64()*MaxwellBoltzmannSigma(temperatureK, massKg)
}

// CanonicalVariance is the expected temperature variance of a Nose-Hoover
// thermostatted system of numAtoms particles in three dimensions,
// 2 T^2 / (3 N), after Holian et al., Phys. Rev. E 52, 2338 (1995).
func CanonicalVariance(numAtoms int, temperatureK float64) (float64, error) {
	if numAtoms <= 0 {
		return 0, fmt.Errorf("canonical variance requires at least one atom, got %d", numAtoms)
	}
	return (2 * temperatureK * temperatureK) / (3 * float64(numAtoms)), nil
}

// NoseHooverDamping returns the thermostat coupling constant expected to
// reproduce canonical temperature fluctuations for the given system size
// and temperature, from the fitted power law in the canonical variance.
func NoseHooverDamping(numAtoms int, temperatureK float64) (float64, error) {
	variance, err := CanonicalVariance(numAtoms, temperatureK)
	if err != nil {
		return 0, err
	}
	damping := (math.Log(variance) - math.Log(NoseHooverFitA)) / NoseHooverFitB
	scale := math.Pow(10, NoseHooverDampingDecimals)
	damping = math.Round(damping*scale) / scale
	return math.Max(damping, MinimumNoseHooverDamping), nil
}

// CentreOfMass returns the mass-weighted centroid of the atoms and their
// individual masses in kilograms.
func CentreOfMass(coords []geometry.Vec3, elements []string) (geometry.Vec3, []float64, error) {
	if len(coords) != len(elements) {
		return geometry.Vec3{}, nil, fmt.Errorf("got %d coordinates for %d elements", len(coords), len(elements))
	}
	if len(coords) == 0 {
		return geometry.Vec3{}, nil, fmt.Errorf("centre of mass of zero atoms")
	}
	masses := make([]float64, len(elements))
	var weighted geometry.Vec3
	var total float64
	for i, e := range elements {
		m, err := MassKg(e)
		if err != nil {
			return geometry.Vec3{}, nil, err
		}
		masses[i] = m
		total += m
		weighted = weighted.Add(coords[i].Scale(m))
	}
	return weighted.Scale(1 / total), masses, nil
}

// MomentOfInertia returns the moment of inertia about each Cartesian axis
// through the centre of mass, I_x = sum m (dy^2 + dz^2) and cyclic, in
// kg Angstrom^2.
func MomentOfInertia(coords []geometry.Vec3, elements []string) (geometry.Vec3, error) {
	centre, masses, err := CentreOfMass(coords, elements)
	if err != nil {
		return geometry.Vec3{}, err
	}
	var inertia geometry.Vec3
	for i, c := range coords {
		d := c.Sub(centre)
		m := masses[i]
		inertia.X += m * (d.Y*d.Y + d.Z*d.Z)
		inertia.Y += m * (d.X*d.X + d.Z*d.Z)
		inertia.Z += m * (d.X*d.X + d.Y*d.Y)
	}
	return inertia, nil
}
