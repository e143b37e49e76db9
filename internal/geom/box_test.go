package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewBox_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		lx, ly, lz float64
	}{
		{"zero", 0, 1, 1},
		{"negative", 1, -1, 1},
		{"nan", 1, 1, math.NaN()},
		{"inf", math.Inf(1), 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBox(tt.lx, tt.ly, tt.lz); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestBox_MinImage(t *testing.T) {
	b := Cube(10)
	tests := []struct {
		d, want r3.Vec
	}{
		{r3.Vec{X: 1}, r3.Vec{X: 1}},
		{r3.Vec{X: 9}, r3.Vec{X: -1}},
		{r3.Vec{X: -9, Y: 6}, r3.Vec{X: 1, Y: -4}},
		{r3.Vec{Z: 21}, r3.Vec{Z: 1}},
	}
	for _, tt := range tests {
		got := b.MinImage(tt.d)
		if r3.Norm(r3.Sub(got, tt.want)) > 1e-12 {
			t.Errorf("MinImage(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestBox_Wrap(t *testing.T) {
	b := Cube(10)
	got := b.Wrap(r3.Vec{X: -0.5, Y: 10, Z: 25})
	want := r3.Vec{X: 9.5, Y: 0, Z: 5}
	if r3.Norm(r3.Sub(got, want)) > 1e-12 {
		t.Errorf("Wrap = %v, want %v", got, want)
	}

	f := b.Fraction(r3.Vec{X: -1e-18})
	if f.X < 0 || f.X >= 1 {
		t.Errorf("Fraction out of range: %v", f.X)
	}
}

func TestBox_FitsRange(t *testing.T) {
	b := Box{L: r3.Vec{X: 10, Y: 2.5, Z: 10}}
	if ok, _ := b.FitsRange(1.25); !ok {
		t.Error("expected range 1.25 to fit")
	}
	ok, axis := b.FitsRange(1.4)
	if ok || axis != 1 {
		t.Errorf("FitsRange(1.4) = %v, %d; want false, 1", ok, axis)
	}
}

func TestBox_Dist2(t *testing.T) {
	b := Cube(10)
	d2 := b.Dist2(r3.Vec{X: 0.5}, r3.Vec{X: 9.5})
	if math.Abs(d2-1) > 1e-12 {
		t.Errorf("Dist2 = %v, want 1", d2)
	}
}
