package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAngleNormalizerScalar(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
		want float64
	}{
		{"zero", 0, 0},
		{"quarter turn", 90, 0.5},
		{"half turn", 180, 1},
		{"negative", -45, -0.25},
		{"beyond half turn", 270, 1.5},
	}

	norm := NewAngleNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := norm.Normalize(tt.deg)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Normalize(%v) = %v, want %v", tt.deg, got, tt.want)
			}
			back := norm.Denormalize(got)
			if math.Abs(back-tt.deg) > 1e-9 {
				t.Errorf("Denormalize(Normalize(%v)) = %v", tt.deg, back)
			}
		})
	}
}

func TestAngleNormalizerSlice(t *testing.T) {
	norm := NewAngleNormalizer()

	in := []float64{0, 90, 180}
	out := norm.NormalizedCopy(in)
	if &in[0] == &out[0] {
		t.Fatal("NormalizedCopy must not alias its input")
	}
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("NormalizedCopy[%d] = %v, want %v", i, out[i], want[i])
		}
	}
	if in[1] != 90 {
		t.Error("NormalizedCopy mutated its input")
	}

	norm.NormalizeSlice(in)
	if math.Abs(in[1]-0.5) > 1e-12 {
		t.Errorf("NormalizeSlice in place = %v, want 0.5", in[1])
	}
}

func TestAngleNormalizerTransform(t *testing.T) {
	norm := NewAngleNormalizer()

	x := mat.NewDense(2, 2, []float64{0, 90, 180, -90})
	got, err := norm.Transform(x)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	want := mat.NewDense(2, 2, []float64{0, 0.5, 1, -0.5})
	if !mat.EqualApprox(got, want, 1e-12) {
		t.Errorf("Transform() = %v, want %v", mat.Formatted(got), mat.Formatted(want))
	}

	round, err := norm.InverseTransform(got)
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}
	if !mat.EqualApprox(round, x, 1e-9) {
		t.Errorf("InverseTransform round trip = %v", mat.Formatted(round))
	}

	if _, err := norm.Transform(&mat.Dense{}); err == nil {
		t.Error("Transform() on empty input should fail")
	}
}
