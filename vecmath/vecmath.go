// Package vecmath provides the linear algebra used by the replicated
// physics pipeline: 3D vectors and the 3x3 rotation/inertia matrices
// derived from them. Components are float32 to match the wire format.
package vecmath

import "math"

// Vec3 is a right-handed 3D vector, also used to store Euler rotation
// angles in radians (X, Y, Z order).
type Vec3 struct {
	X, Y, Z float32
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSq() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSq())))
}

func (v Vec3) Distance(o Vec3) float32 {
	return v.Sub(o).Length()
}

func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

func (v Vec3) Lerp(o Vec3, t float32) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Clamp clamps each component of v to [min, max].
func (v Vec3) Clamp(min, max Vec3) Vec3 {
	return Vec3{
		X: clamp(v.X, min.X, max.X),
		Y: clamp(v.Y, min.Y, max.Y),
		Z: clamp(v.Z, min.Z, max.Z),
	}
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Mat3 is a row-major 3x3 matrix, used for rotation and inertia tensors.
type Mat3 [3][3]float32

func Identity3() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Diag builds a diagonal matrix, used for body-space inertia tensors.
func Diag(x, y, z float32) Mat3 {
	m := Mat3{}
	m[0][0] = x
	m[1][1] = y
	m[2][2] = z
	return m
}

// RotationXYZ builds the rotation matrix for applying rotation.X then
// rotation.Y then rotation.Z, matching the teacher's (and raylib's)
// MatrixRotateXYZ convention: R = Rz * Ry * Rx.
func RotationXYZ(rotation Vec3) Mat3 {
	cx, sx := float32(math.Cos(float64(rotation.X))), float32(math.Sin(float64(rotation.X)))
	cy, sy := float32(math.Cos(float64(rotation.Y))), float32(math.Sin(float64(rotation.Y)))
	cz, sz := float32(math.Cos(float64(rotation.Z))), float32(math.Sin(float64(rotation.Z)))

	rx := Mat3{
		{1, 0, 0},
		{0, cx, -sx},
		{0, sx, cx},
	}
	ry := Mat3{
		{cy, 0, sy},
		{0, 1, 0},
		{-sy, 0, cy},
	}
	rz := Mat3{
		{cz, -sz, 0},
		{sz, cz, 0},
		{0, 0, 1},
	}
	return rz.Mul(ry).Mul(rx)
}

func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += m[i][k] * o[k][j]
			}
			r[i][j] = sum
		}
	}
	return r
}

func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns the transpose, which for a pure rotation matrix is
// also its inverse.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Inverse3x3 inverts a general 3x3 matrix via the adjugate. Used to turn
// a body-space inertia tensor into its inverse once at construction time.
func (m Mat3) Inverse3x3() Mat3 {
	a, b, c := m[0][0], m[0][1], m[0][2]
	d, e, f := m[1][0], m[1][1], m[1][2]
	g, h, i := m[2][0], m[2][1], m[2][2]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if det == 0 {
		return Mat3{}
	}
	invDet := 1 / det

	return Mat3{
		{(e*i - f*h) * invDet, (c*h - b*i) * invDet, (b*f - c*e) * invDet},
		{(f*g - d*i) * invDet, (a*i - c*g) * invDet, (c*d - a*f) * invDet},
		{(d*h - e*g) * invDet, (b*g - a*h) * invDet, (a*e - b*d) * invDet},
	}
}

// AxisTests returns the three columns of m, used as SAT face-axis tests
// for an oriented box whose local axes are the columns of its rotation
// matrix.
func (m Mat3) AxisTests() [3]Vec3 {
	return [3]Vec3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}
