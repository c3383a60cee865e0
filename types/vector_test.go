package types

import (
	"math"
	"testing"

	"github.com/chewxy/math32"
)

func TestMinMaxVec3(t *testing.T) {
	a := XYZ(1, -2, 3)
	b := XYZ(-1, 2, 3)

	if got, exp := MinVec3(a, b), XYZ(-1, -2, 3); got != exp {
		t.Fatalf("expected min to be %v; got %v", exp, got)
	}
	if got, exp := MaxVec3(a, b), XYZ(1, 2, 3); got != exp {
		t.Fatalf("expected max to be %v; got %v", exp, got)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected zero vector to normalize to zero; got %v", got)
	}

	n := XYZ(3, 0, 4).Normalize()
	if math32.Abs(n.Len()-1) > 1e-6 {
		t.Fatalf("expected unit length; got %f", n.Len())
	}
}

func TestIsFinite(t *testing.T) {
	specs := []struct {
		v   Vec3
		exp bool
	}{
		{XYZ(0, 1, 2), true},
		{XYZ(float32(math.NaN()), 0, 0), false},
		{XYZ(0, float32(math.Inf(1)), 0), false},
		{XYZ(0, 0, float32(math.Inf(-1))), false},
	}

	for index, s := range specs {
		if got := s.v.IsFinite(); got != s.exp {
			t.Fatalf("[spec %d] expected IsFinite() to return %t; got %t", index, s.exp, got)
		}
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(XYZ(0, 1, 0), math32.Pi/2)
	got := q.Rotate(XYZ(1, 0, 0))
	exp := XYZ(0, 0, -1)
	if got.Sub(exp).Len() > 1e-5 {
		t.Fatalf("expected rotated vector to be %v; got %v", exp, got)
	}

	// Two quarter turns make a half turn
	got = q.Mul(q).Normalize().Rotate(XYZ(1, 0, 0))
	exp = XYZ(-1, 0, 0)
	if got.Sub(exp).Len() > 1e-5 {
		t.Fatalf("expected rotated vector to be %v; got %v", exp, got)
	}
}
