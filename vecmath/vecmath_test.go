package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec3Basics(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	assert.Equal(t, Vec3{5, 7, 9}, a.Add(b))
	assert.Equal(t, Vec3{-3, -3, -3}, a.Sub(b))
	assert.Equal(t, Vec3{2, 4, 6}, a.Scale(2))
	assert.InDelta(t, 32, a.Dot(b), 1e-6)
	assert.Equal(t, Vec3{2 * 6 - 3 * 5, 3*4 - 1*6, 1*5 - 2*4}, a.Cross(b))
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}
	n := v.Normalize()
	require.InDelta(t, 1.0, n.Length(), 1e-5)
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
}

func TestVec3Lerp(t *testing.T) {
	a := Vec3{0, 0, 0}
	b := Vec3{10, 0, 0}
	assert.Equal(t, Vec3{2.5, 0, 0}, a.Lerp(b, 0.25))
}

func TestMat3RotationIdentity(t *testing.T) {
	m := RotationXYZ(Vec3{})
	v := Vec3{1, 2, 3}
	got := m.MulVec3(v)
	assert.InDelta(t, v.X, got.X, 1e-5)
	assert.InDelta(t, v.Y, got.Y, 1e-5)
	assert.InDelta(t, v.Z, got.Z, 1e-5)
}

func TestMat3TransposeIsInverseForRotation(t *testing.T) {
	m := RotationXYZ(Vec3{0.3, -0.2, 1.1})
	roundTrip := m.Transpose().Mul(m)
	id := Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, id[i][j], roundTrip[i][j], 1e-4)
		}
	}
}

func TestDiagInverse(t *testing.T) {
	m := Diag(2, 4, 8)
	inv := m.Inverse3x3()
	assert.InDelta(t, 0.5, inv[0][0], 1e-6)
	assert.InDelta(t, 0.25, inv[1][1], 1e-6)
	assert.InDelta(t, 0.125, inv[2][2], 1e-6)
}
