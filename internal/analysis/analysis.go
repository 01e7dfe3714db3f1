// Package analysis implements structural checks on post-deposition states.
// Checks classify bad outcomes (sputtered particles, failed bonding) as
// recoverable failures so the campaign can retry the iteration, and can
// relocate the structure to the origin once the checks pass.
package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mmtn/deposition-molecular-dynamics/internal/config"
	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
	"github.com/mmtn/deposition-molecular-dynamics/internal/logging"
	"github.com/mmtn/deposition-molecular-dynamics/internal/structure"
)

// upperWrapFraction marks the top region of the cell. Atoms above this
// fraction of the cell height belong to the image below the cell floor.
const upperWrapFraction = 0.8

// Failure reports a structural check the state did not pass. Failures are
// recoverable: the iteration is archived as failed and the campaign moves
// on. Any other error from a check is fatal.
type Failure struct {
	Check  string
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s check failed: %s", f.Check, f.Reason)
}

// xyOffsets enumerates the eight in-plane periodic image shifts.
var xyOffsets = [8][2]float64{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// WrapZ folds atoms in the top region of the cell down by one cell vector.
// Deposited particles that drifted over the upper boundary re-enter at the
// bottom after periodic wrapping, which would poison surface detection and
// distance checks if left in place.
func WrapZ(coords []geometry.Vec3, cell *geometry.Cell) []geometry.Vec3 {
	threshold := upperWrapFraction * cell.SizeZ()
	wrapped := make([]geometry.Vec3, len(coords))
	for i, c := range coords {
		if c.Z > threshold {
			c = c.Sub(cell.ZVector)
		}
		wrapped[i] = c
	}
	return wrapped
}

// PeriodicImagesXY returns the coordinates followed by their eight in-plane
// periodic images. The originals occupy the first len(coords) entries.
func PeriodicImagesXY(coords []geometry.Vec3, cell *geometry.Cell) []geometry.Vec3 {
	images := make([]geometry.Vec3, 0, 9*len(coords))
	images = append(images, coords...)
	for _, offset := range xyOffsets {
		shift := cell.XVector.Scale(offset[0]).Add(cell.YVector.Scale(offset[1]))
		for _, c := range coords {
			images = append(images, c.Add(shift))
		}
	}
	return images
}

// NeighbourCounts counts, for every atom, the periodic images strictly
// within the cutoff distance. Each atom counts its own image at distance
// zero, so counts are always at least one.
func NeighbourCounts(coords []geometry.Vec3, cell *geometry.Cell, cutoff float64) []int {
	images := PeriodicImagesXY(coords, cell)
	counts := make([]int, len(coords))
	for i, c := range coords {
		n := 0
		for _, img := range images {
			if c.Sub(img).Norm() < cutoff {
				n++
			}
		}
		counts[i] = n
	}
	return counts
}

// ShiftToOrigin wraps the coordinates and translates them so the smallest
// coordinate on each axis sits at zero.
func ShiftToOrigin(coords []geometry.Vec3, cell *geometry.Cell) []geometry.Vec3 {
	shifted := WrapZ(coords, cell)
	if len(shifted) == 0 {
		return shifted
	}
	min := shifted[0]
	for _, c := range shifted[1:] {
		min.X = math.Min(min.X, c.X)
		min.Y = math.Min(min.Y, c.Y)
		min.Z = math.Min(min.Z, c.Z)
	}
	for i := range shifted {
		shifted[i] = shifted[i].Sub(min)
	}
	return shifted
}

// Validator runs the configured structural checks against a state.
type Validator struct {
	settings config.Postprocessing
	element  string
	cell     *geometry.Cell
	logger   *slog.Logger
	events   *logging.EventLogger
}

// NewValidator creates a validator for the given postprocessing settings.
// element is the deposited species, used by the lower-interface check.
func NewValidator(settings config.Postprocessing, element string, cell *geometry.Cell) *Validator {
	return &Validator{
		settings: settings,
		element:  element,
		cell:     cell,
	}
}

// SetLogger sets the structured logger and event logger for observability.
func (v *Validator) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	v.logger = logger
	v.events = events
}

// Run applies the enabled checks in order and returns the state to carry
// forward. A *Failure error means the structure was rejected; other errors
// indicate the checks themselves could not run.
func (v *Validator) Run(state *structure.State) (*structure.State, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("state not checkable: %w", err)
	}

	if nn := v.settings.NumNeighbours; nn != nil {
		if err := v.checkNeighbourCounts(state, nn.MinNeighbours, nn.BondingCutoff); err != nil {
			return nil, err
		}
	}
	if li := v.settings.LowerInterface; li != nil {
		if err := v.checkLowerInterface(state, li.BondingCutoff); err != nil {
			return nil, err
		}
	}

	if v.settings.ShiftToOrigin {
		shifted := state.Clone()
		shifted.Coordinates = ShiftToOrigin(shifted.Coordinates, v.cell)
		state = shifted
	}

	return state, nil
}

// checkNeighbourCounts rejects states containing undercoordinated
// particles, the signature of sputtering or a failed landing.
func (v *Validator) checkNeighbourCounts(state *structure.State, minNeighbours int, cutoff float64) error {
	wrapped := WrapZ(state.Coordinates, v.cell)
	counts := NeighbourCounts(wrapped, v.cell, cutoff)

	under := 0
	for i, n := range counts {
		if n <= minNeighbours {
			under++
			if v.logger != nil {
				v.logger.Debug("undercoordinated particle",
					"index", i,
					"element", state.Elements[i],
					"neighbours", n)
			}
		}
	}
	if under > 0 {
		v.events.Log(map[string]any{
			"event":          "check_failed",
			"check":          "num_neighbours",
			"particles":      under,
			"min_neighbours": minNeighbours,
			"cutoff":         cutoff,
		})
		return &Failure{
			Check:  "num_neighbours",
			Reason: fmt.Sprintf("%d particle(s) with %d or fewer neighbours within %g Angstroms", under, minNeighbours, cutoff),
		}
	}
	return nil
}

// checkLowerInterface rejects states where a deposited particle sits within
// bonding distance of the bottom of the structure. Growth is expected on
// the top surface; bonding to the underside means the particle passed
// through the periodic boundary.
func (v *Validator) checkLowerInterface(state *structure.State, cutoff float64) error {
	if state.Len() == 0 {
		return nil
	}
	wrapped := WrapZ(state.Coordinates, v.cell)

	minZ := wrapped[0].Z
	for _, c := range wrapped[1:] {
		minZ = math.Min(minZ, c.Z)
	}

	for i, c := range wrapped {
		if state.Elements[i] != v.element {
			continue
		}
		if math.Abs(c.Z-minZ) <= cutoff {
			v.events.Log(map[string]any{
				"event":   "check_failed",
				"check":   "lower_interface",
				"index":   i,
				"z":       c.Z,
				"minimum": minZ,
				"cutoff":  cutoff,
			})
			return &Failure{
				Check:  "lower_interface",
				Reason: fmt.Sprintf("%s particle at z=%g within %g Angstroms of the lower interface at z=%g", v.element, c.Z, cutoff, minZ),
			}
		}
	}
	return nil
}
