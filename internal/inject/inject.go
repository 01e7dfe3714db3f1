// Package inject adds new particles to a relaxed state ahead of the
// deposition phase. Placement and velocity come from the configured
// sampling strategies; molecules additionally receive thermal rotation
// about their centre of mass.
package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/distributions"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
	"github.com/mmtn/deposition-molecular-dynamics/internal/physics"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// ErrVelocityGenerationFailed means the velocity distribution could not
// produce a z component above the configured minimum. The usual cause is
// a minimum set far into the tail of the distribution.
var ErrVelocityGenerationFailed = errors.New("velocity generation failed")

// ErrNoSurface means no particle sits below the upper wrap region, so
// there is no surface to deposit onto.
var ErrNoSurface = errors.New("no surface found")

// surfaceFraction bounds the surface search. Atoms above this fraction of
// the cell height are periodic images of the bottom, not surface.
const surfaceFraction = 0.8

// maxVelocityAttempts caps the rejection loop for the minimum-velocity
// constraint.
const maxVelocityAttempts = 10000

// SurfaceHeight returns the highest z coordinate below the upper wrap
// region of the cell.
func SurfaceHeight(state *structure.State, cell *geometry.Cell) (float64, error) {
	threshold := surfaceFraction * cell.SizeZ()
	height := math.Inf(-1)
	found := false
	for _, c := range state.Coordinates {
		if c.Z < threshold && c.Z > height {
			height = c.Z
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: no particles below z=%g", ErrNoSurface, threshold)
	}
	return height, nil
}

// Injector performs the insertion events of one iteration.
type Injector struct {
	settings *config.Settings
	cell     *geometry.Cell

	// scaling converts metres per second into the engine's velocity
	// units.
	scaling float64

	rng    *rand.Rand
	logger *slog.Logger
	events *logging.EventLogger
}

// New creates an injector. velocityScaling is the engine's conversion
// factor from metres per second.
func New(settings *config.Settings, cell *geometry.Cell, velocityScaling float64, rng *rand.Rand) *Injector {
	return &Injector{
		settings: settings,
		cell:     cell,
		scaling:  velocityScaling,
		rng:      rng,
	}
}

// SetLogger sets the structured logger and event logger for observability.
func (inj *Injector) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	inj.logger = logger
	inj.events = events
}

// Run returns a copy of the state with the iteration's new particles
// appended. The input state is not modified.
func (inj *Injector) Run(state *structure.State) (*structure.State, error) {
	surface, err := SurfaceHeight(state, inj.cell)
	if err != nil {
		return nil, err
	}
	planeZ := surface + inj.settings.DepositionHeight

	polygon := inj.cell.PlanePolygon(planeZ)

	positionKind, err := distributions.ParsePositionKind(inj.settings.PositionDistribution)
	if err != nil {
		return nil, err
	}
	positions, err := distributions.NewPosition(positionKind, inj.settings.PositionDistributionParameters, polygon, planeZ)
	if err != nil {
		return nil, err
	}
	velocityKind, err := distributions.ParseVelocityKind(inj.settings.VelocityDistribution)
	if err != nil {
		return nil, err
	}
	velocities, err := distributions.NewVelocity(velocityKind, inj.settings.VelocityDistributionParameters)
	if err != nil {
		return nil, err
	}

	template, elements, err := inj.template()
	if err != nil {
		return nil, err
	}

	result := state.Clone()
	if !result.HasVelocities() && result.Len() > 0 {
		// Engines that do not report velocities leave the substrate at
		// rest; only the injected particles move.
		result.Velocities = make([]geometry.Vec3, result.Len())
	}
	for event := 0; event < inj.settings.NumDepositedPerIteration; event++ {
		position, err := positions.Sample(inj.rng)
		if err != nil {
			return nil, fmt.Errorf("sampling position: %w", err)
		}

		coords := recentre(template, position)

		velocity, err := inj.sampleVelocity(velocities)
		if err != nil {
			return nil, err
		}

		newVelocities := make([]geometry.Vec3, len(coords))
		for i := range newVelocities {
			newVelocities[i] = velocity
		}
		if inj.settings.DepositionType == config.DepositionMolecule && len(coords) > 1 {
			if err := inj.addRotation(coords, elements, newVelocities); err != nil {
				return nil, err
			}
		}

		for i := range newVelocities {
			newVelocities[i] = newVelocities[i].Scale(inj.scaling)
		}

		if err := result.Append(coords, elements, newVelocities); err != nil {
			return nil, fmt.Errorf("appending particles: %w", err)
		}

		if inj.logger != nil {
			inj.logger.Debug("particles injected",
				"event", event,
				"particles", len(coords),
				"x", position.X,
				"y", position.Y,
				"z", position.Z,
				"speed", velocity.Norm())
		}
	}

	inj.events.Log(map[string]any{
		"event":          "injection_complete",
		"events":         inj.settings.NumDepositedPerIteration,
		"surface_height": surface,
		"plane_height":   planeZ,
	})
	return result, nil
}

// template returns the coordinates and elements of one insertion event,
// before placement.
func (inj *Injector) template() ([]geometry.Vec3, []string, error) {
	if inj.settings.DepositionType == config.DepositionMolecule {
		molecule, err := structure.ReadXYZ(inj.settings.MoleculeXYZFile, structure.LastFrame)
		if err != nil {
			return nil, nil, fmt.Errorf("reading molecule: %w", err)
		}
		return molecule.Coordinates, molecule.Elements, nil
	}
	return []geometry.Vec3{{}}, []string{inj.settings.DepositionElement}, nil
}

// recentre places the template so its geometric centre sits at the sampled
// position.
func recentre(template []geometry.Vec3, position geometry.Vec3) []geometry.Vec3 {
	var mean geometry.Vec3
	for _, c := range template {
		mean = mean.Add(c)
	}
	mean = mean.Scale(1.0 / float64(len(template)))

	coords := make([]geometry.Vec3, len(template))
	for i, c := range template {
		coords[i] = position.Add(c.Sub(mean))
	}
	return coords
}

// sampleVelocity draws translational velocities until the z component
// clears the configured minimum, then points it at the surface.
func (inj *Injector) sampleVelocity(dist distributions.Velocity) (geometry.Vec3, error) {
	for attempt := 0; attempt < maxVelocityAttempts; attempt++ {
		v, err := dist.Sample(inj.rng)
		if err != nil {
			return geometry.Vec3{}, fmt.Errorf("sampling velocity: %w", err)
		}
		if math.Abs(v.Z) > inj.settings.MinVelocity {
			v.Z = -math.Abs(v.Z)
			return v, nil
		}
	}
	return geometry.Vec3{}, fmt.Errorf("%w: no z component above %g m/s in %d attempts",
		ErrVelocityGenerationFailed, inj.settings.MinVelocity, maxVelocityAttempts)
}

// addRotation superimposes thermal rotation about the centre of mass onto
// the molecule's translational velocities.
func (inj *Injector) addRotation(coords []geometry.Vec3, elements []string, velocities []geometry.Vec3) error {
	com, _, err := physics.CentreOfMass(coords, elements)
	if err != nil {
		return fmt.Errorf("rotational velocities: %w", err)
	}
	inertia, err := physics.MomentOfInertia(coords, elements)
	if err != nil {
		return fmt.Errorf("rotational velocities: %w", err)
	}

	temperature := inj.settings.DepositionTemperature
	omega := geometry.Vec3{
		X: physics.VelocityFromNormal(inj.rng, temperature, inertia.X, 0, inj.logger),
		Y: physics.VelocityFromNormal(inj.rng, temperature, inertia.Y, 0, inj.logger),
		Z: physics.VelocityFromNormal(inj.rng, temperature, inertia.Z, 0, inj.logger),
	}

	for i, c := range coords {
		velocities[i] = velocities[i].Add(omega.Cross(c.Sub(com)))
	}
	return nil
}
