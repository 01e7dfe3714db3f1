// Package distributions provides the closed set of position and velocity
// sampling strategies used to place deposited particles. Every strategy
// validates its parameters at construction so malformed campaigns are
// rejected before any simulation work begins.
package distributions

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/physics"
)

// ErrInvalidParameters reports an unknown distribution or a wrong
// parameter count at construction.
var ErrInvalidParameters = errors.New("invalid distribution parameters")

// ErrSamplingExhausted reports that rejection sampling hit its attempt cap
// without producing an accepted point.
var ErrSamplingExhausted = errors.New("sampling exhausted")

// maxSampleAttempts caps rejection sampling so a degenerate polygon fails
// instead of looping forever.
const maxSampleAttempts = 10000

// PositionKind selects a position sampling strategy.
type PositionKind string

// VelocityKind selects a velocity sampling strategy.
type VelocityKind string

const (
	PositionFixed   PositionKind = "fixed"
	PositionUniform PositionKind = "uniform"

	VelocityFixed    VelocityKind = "fixed"
	VelocityGaussian VelocityKind = "gaussian"
)

// ParsePositionKind validates a position distribution name from
// configuration.
func ParsePositionKind(s string) (PositionKind, error) {
	switch PositionKind(s) {
	case PositionFixed, PositionUniform:
		return PositionKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown position distribution %q", ErrInvalidParameters, s)
}

// ParseVelocityKind validates a velocity distribution name from
// configuration.
func ParseVelocityKind(s string) (VelocityKind, error) {
	switch VelocityKind(s) {
	case VelocityFixed, VelocityGaussian:
		return VelocityKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown velocity distribution %q", ErrInvalidParameters, s)
}

// Position samples placement coordinates on the injection plane.
type Position interface {
	Sample(rng *rand.Rand) (geometry.Vec3, error)
}

// Velocity samples a velocity vector in metres per second.
type Velocity interface {
	Sample(rng *rand.Rand) (geometry.Vec3, error)
}

// NewPosition constructs a position distribution for the given polygon and
// plane height. Parameter counts are fixed per kind: fixed takes (x, y),
// uniform takes none.
func NewPosition(kind PositionKind, params []float64, polygon geometry.Polygon, z float64) (Position, error) {
	switch kind {
	case PositionFixed:
		if len(params) != 2 {
			return nil, fmt.Errorf("%w: fixed position requires 2 parameters (x, y), got %d", ErrInvalidParameters, len(params))
		}
		return fixedPosition{x: params[0], y: params[1], z: z}, nil
	case PositionUniform:
		if len(params) != 0 {
			return nil, fmt.Errorf("%w: uniform position takes no parameters, got %d", ErrInvalidParameters, len(params))
		}
		return uniformPosition{polygon: polygon, z: z}, nil
	}
	return nil, fmt.Errorf("%w: unknown position distribution %q", ErrInvalidParameters, kind)
}

// NewVelocity constructs a velocity distribution. Parameter counts are
// fixed per kind: fixed takes (vx, vy, vz), gaussian takes (temperature in
// Kelvin, particle mass in kg, mean in m/s).
func NewVelocity(kind VelocityKind, params []float64) (Velocity, error) {
	switch kind {
	case VelocityFixed:
		if len(params) != 3 {
			return nil, fmt.Errorf("%w: fixed velocity requires 3 parameters (vx, vy, vz), got %d", ErrInvalidParameters, len(params))
		}
		return fixedVelocity{v: geometry.Vec3{X: params[0], Y: params[1], Z: params[2]}}, nil
	case VelocityGaussian:
		if len(params) != 3 {
			return nil, fmt.Errorf("%w: gaussian velocity requires 3 parameters (temperature, mass, mean), got %d", ErrInvalidParameters, len(params))
		}
		temperature, mass, mean := params[0], params[1], params[2]
		if temperature <= 0 {
			return nil, fmt.Errorf("%w: gaussian temperature must be greater than zero, got %g", ErrInvalidParameters, temperature)
		}
		if mass <= 0 {
			return nil, fmt.Errorf("%w: gaussian particle mass must be greater than zero, got %g", ErrInvalidParameters, mass)
		}
		return gaussianVelocity{temperatureK: temperature, massKg: mass, mean: mean}, nil
	}
	return nil, fmt.Errorf("%w: unknown velocity distribution %q", ErrInvalidParameters, kind)
}

type fixedPosition struct {
	x, y, z float64
}

func (d fixedPosition) Sample(*rand.Rand) (geometry.Vec3, error) {
	return geometry.Vec3{X: d.x, Y: d.y, Z: d.z}, nil
}

type uniformPosition struct {
	polygon geometry.Polygon
	z       float64
}

func (d uniformPosition) Sample(rng *rand.Rand) (geometry.Vec3, error) {
	minX, minY, maxX, maxY := d.polygon.Bounds()
	for i := 0; i < maxSampleAttempts; i++ {
		p := geometry.Point{
			X: minX + rng.Float64()*(maxX-minX),
			Y: minY + rng.Float64()*(maxY-minY),
		}
		if d.polygon.Contains(p) {
			return geometry.Vec3{X: p.X, Y: p.Y, Z: d.z}, nil
		}
	}
	return geometry.Vec3{}, fmt.Errorf("%w: no point accepted in %d attempts", ErrSamplingExhausted, maxSampleAttempts)
}

type fixedVelocity struct {
	v geometry.Vec3
}

func (d fixedVelocity) Sample(*rand.Rand) (geometry.Vec3, error) {
	return d.v, nil
}

type gaussianVelocity struct {
	temperatureK float64
	massKg       float64
	mean         float64
}

func (d gaussianVelocity) Sample(rng *rand.Rand) (geometry.Vec3, error) {
	sigma := physics.MaxwellBoltzmannSigma(d.temperatureK, d.massKg)
	return geometry.Vec3{
		X: d.mean + rng.NormFloat64()*sigma,
		Y: d.mean + rng.NormFloat64()*sigma,
		Z: d.mean + rng.NormFloat64()*sigma,
	}, nil
}
