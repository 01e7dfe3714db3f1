package structure

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mmtn/deposition-molecular-dynamics/internal/geometry"
)

// Frame selects which step of a multi-frame XYZ trajectory to read.
type Frame int

const (
	// LastFrame reads the final step of the trajectory.
	LastFrame Frame = iota
	// FirstFrame reads the initial step.
	FirstFrame
)

// xyzHeaderLines is the atom-count line plus the comment line.
const xyzHeaderLines = 2

// ReadXYZ reads one frame of an XYZ file: an atom-count line, a comment
// line, then one whitespace-delimited "element x y z" row per atom. Extra
// columns beyond the first four are ignored. Multi-frame trajectories are
// assumed to repeat the same atom count every frame.
func ReadXYZ(path string, frame Frame) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading xyz file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < xyzHeaderLines {
		return nil, fmt.Errorf("xyz file %s: missing header", path)
	}

	numAtoms, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || numAtoms <= 0 {
		return nil, fmt.Errorf("xyz file %s: bad atom count %q", path, strings.TrimSpace(lines[0]))
	}

	linesPerFrame := numAtoms + xyzHeaderLines
	if len(lines) < linesPerFrame {
		return nil, fmt.Errorf("xyz file %s: %d lines for %d atoms", path, len(lines), numAtoms)
	}
	totalFrames := len(lines) / linesPerFrame

	start := xyzHeaderLines
	if frame == LastFrame {
		start = linesPerFrame*(totalFrames-1) + xyzHeaderLines
	}

	s := &State{
		Coordinates: make([]geometry.Vec3, 0, numAtoms),
		Elements:    make([]string, 0, numAtoms),
	}
	for i := start; i < start+numAtoms; i++ {
		fields := strings.Fields(lines[i])
		if len(fields) < 4 {
			return nil, fmt.Errorf("xyz file %s line %d: expected 'element x y z', got %q", path, i+1, lines[i])
		}
		var v geometry.Vec3
		if v.X, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("xyz file %s line %d: bad x coordinate: %w", path, i+1, err)
		}
		if v.Y, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("xyz file %s line %d: bad y coordinate: %w", path, i+1, err)
		}
		if v.Z, err = strconv.ParseFloat(fields[3], 64); err != nil {
			return nil, fmt.Errorf("xyz file %s line %d: bad z coordinate: %w", path, i+1, err)
		}
		s.Coordinates = append(s.Coordinates, v)
		s.Elements = append(s.Elements, fields[0])
	}
	return s, nil
}

// WriteXYZ writes the state as a single XYZ frame.
func WriteXYZ(w io.Writer, s *State, comment string) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("writing xyz: %w", err)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%s\n", s.Len(), comment)
	for i, c := range s.Coordinates {
		fmt.Fprintf(bw, "%s %g %g %g\n", s.Elements[i], c.X, c.Y, c.Z)
	}
	return bw.Flush()
}
