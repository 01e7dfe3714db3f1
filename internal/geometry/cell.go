// Package geometry derives the Cartesian bounds, tilt factors, and lattice
// vectors of a periodic simulation cell from its lattice parameters, and
// provides the vector and polygon primitives used by injection and
// structural analysis.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry reports lattice parameters that cannot describe a
// periodic cell.
var ErrInvalidGeometry = errors.New("invalid cell geometry")

// CellParams are the six lattice parameters of a triclinic cell.
// Lengths are in Angstroms, angles in degrees.
type CellParams struct {
	A     float64 `yaml:"a" json:"a"`
	B     float64 `yaml:"b" json:"b"`
	C     float64 `yaml:"c" json:"c"`
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	Gamma float64 `yaml:"gamma" json:"gamma"`
}

// Cell is a periodic simulation cell in the lower-triangular lattice box
// convention: the a edge lies along x, the b edge in the xy plane. Cells
// are immutable once constructed; all periodic-image arithmetic in the
// analysis and injection code depends on this exact convention.
//
// A z-periodic image of a coordinate is coordinate - ZVector; an xy image
// is coordinate + i*XVector + j*YVector for integer i, j.
type Cell struct {
	Params CellParams

	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64

	TiltXY float64
	TiltXZ float64
	TiltYZ float64

	XVector Vec3
	YVector Vec3
	ZVector Vec3
}

// NewCell derives the Cartesian box from lattice parameters. All six
// parameters must be strictly positive, and the parameters must describe a
// box with positive volume.
func NewCell(p CellParams) (*Cell, error) {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"a", p.A}, {"b", p.B}, {"c", p.C},
		{"alpha", p.Alpha}, {"beta", p.Beta}, {"gamma", p.Gamma},
	} {
		if v.value <= 0 {
			return nil, fmt.Errorf("%w: %s must be greater than zero, got %g", ErrInvalidGeometry, v.name, v.value)
		}
	}

	lx := p.A
	xy := p.B * cosDegrees(p.Gamma)
	xz := p.C * cosDegrees(p.Beta)
	lySquared := p.B*p.B - xy*xy
	if lySquared <= 0 {
		return nil, fmt.Errorf("%w: parameters give a non-positive y extent", ErrInvalidGeometry)
	}
	ly := math.Sqrt(lySquared)
	yz := (p.B*p.C*cosDegrees(p.Alpha) - xy*xz) / ly
	lzSquared := p.C*p.C - xz*xz - yz*yz
	if lzSquared <= 0 {
		return nil, fmt.Errorf("%w: parameters give a non-positive z extent", ErrInvalidGeometry)
	}
	lz := math.Sqrt(lzSquared)

	return &Cell{
		Params: p,
		XMin:   0, XMax: lx,
		YMin: 0, YMax: ly,
		ZMin: 0, ZMax: lz,
		TiltXY:  xy,
		TiltXZ:  xz,
		TiltYZ:  yz,
		XVector: Vec3{X: lx},
		YVector: Vec3{X: xy, Y: ly},
		ZVector: Vec3{X: xz, Y: yz, Z: lz},
	}, nil
}

// SizeX returns the x extent of the box.
func (c *Cell) SizeX() float64 { return c.XMax - c.XMin }

// SizeY returns the y extent of the box.
func (c *Cell) SizeY() float64 { return c.YMax - c.YMin }

// SizeZ returns the z extent of the box.
func (c *Cell) SizeZ() float64 { return c.ZMax - c.ZMin }

// PlanePolygon returns the boundary of the cell cross-section at height z.
// The base polygon is the xy footprint including the xy tilt; raising the
// plane shifts the whole polygon by the x and y components of ZVector in
// proportion to z / SizeZ. Corner order matters: the corners trace the
// parallelogram.
func (c *Cell) PlanePolygon(z float64) Polygon {
	relative := z / c.SizeZ()
	dx := c.ZVector.X * relative
	dy := c.ZVector.Y * relative
	return Polygon{
		{X: c.XMin + dx, Y: c.YMin + dy},
		{X: c.XMax + dx, Y: c.YMin + dy},
		{X: c.XMax + c.TiltXY + dx, Y: c.YMax + dy},
		{X: c.XMin + c.TiltXY + dx, Y: c.YMax + dy},
	}
}

// cosDegrees is cos of an angle given in degrees, with exact zero at
// right angles so that orthogonal cells derive exactly zero tilts.
func cosDegrees(degrees float64) float64 {
	if math.Mod(degrees, 180) == 90 {
		return 0
	}
	return math.Cos(degrees * math.Pi / 180)
}
