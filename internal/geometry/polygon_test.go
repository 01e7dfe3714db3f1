package geometry

import "testing"

func TestPolygonContains(t *testing.T) {
	square := Polygon{{0, 0}, {10, 0}, {10, 10}, {0, 10}}

	tests := []struct {
		name string
		pt   Point
		want bool
	}{
		{"centre", Point{5, 5}, true},
		{"near corner inside", Point{0.01, 0.01}, true},
		{"outside left", Point{-1, 5}, false},
		{"outside right", Point{11, 5}, false},
		{"outside above", Point{5, 11}, false},
		{"outside below", Point{5, -1}, false},
		{"far away", Point{100, 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := square.Contains(tt.pt); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestPolygonContains_Parallelogram(t *testing.T) {
	// Sheared footprint like a gamma-tilted cell: x runs 0..10 at y=0
	// and 5..15 at y=10.
	para := Polygon{{0, 0}, {10, 0}, {15, 10}, {5, 10}}

	tests := []struct {
		name string
		pt   Point
		want bool
	}{
		{"centre", Point{7.5, 5}, true},
		{"in bbox but left of shear", Point{1, 9}, false},
		{"in bbox but right of shear", Point{14, 1}, false},
		{"inside upper region", Point{13, 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := para.Contains(tt.pt); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestPolygonBounds(t *testing.T) {
	para := Polygon{{0, 0}, {10, 0}, {15, 10}, {5, 10}}
	minX, minY, maxX, maxY := para.Bounds()
	if minX != 0 || minY != 0 || maxX != 15 || maxY != 10 {
		t.Errorf("expected bounds (0, 0, 15, 10), got (%g, %g, %g, %g)", minX, minY, maxX, maxY)
	}
}

func TestPolygonBounds_Empty(t *testing.T) {
	var empty Polygon
	minX, minY, maxX, maxY := empty.Bounds()
	if minX != 0 || minY != 0 || maxX != 0 || maxY != 0 {
		t.Errorf("expected zero bounds for empty polygon, got (%g, %g, %g, %g)", minX, minY, maxX, maxY)
	}
}

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	if got := a.Add(b); got != (Vec3{5, 7, 9}) {
		t.Errorf("Add = %+v, want {5 7 9}", got)
	}
	if got := b.Sub(a); got != (Vec3{3, 3, 3}) {
		t.Errorf("Sub = %+v, want {3 3 3}", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale = %+v, want {2 4 6}", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Errorf("Dot = %g, want 32", got)
	}
	if got := (Vec3{1, 0, 0}).Cross(Vec3{0, 1, 0}); got != (Vec3{0, 0, 1}) {
		t.Errorf("Cross = %+v, want {0 0 1}", got)
	}
	if got := (Vec3{3, 4, 0}).Norm(); got != 5 {
		t.Errorf("Norm = %g, want 5", got)
	}
}
