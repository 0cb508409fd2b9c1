package math

import "math"

// Mat4 is a 4x4 float32 matrix in column-major order, ready for glUniformMatrix4fv.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// PerspectiveReverseZ returns an infinite-far perspective projection that maps
// the near plane to NDC depth 1 and infinity to 0. With the default depth
// range GL stores (1+near/w)/2, so the depth clear is 0 and the test is
// GREATER. fovY is in radians, aspect is width/height.
func PerspectiveReverseZ(fovY, aspect, near float32) Mat4 {
	f := float32(1.0 / math.Tan(float64(fovY)/2.0))
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, 0, -1,
		0, 0, near, 0,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] =
				m[0*4+row]*other[col*4+0] +
					m[1*4+row]*other[col*4+1] +
					m[2*4+row]*other[col*4+2] +
					m[3*4+row]*other[col*4+3]
		}
	}
	return result
}

// Vec4 is a 4-component vector, typically a clip-space position.
type Vec4 [4]float32

// MulVec4 multiplies the matrix by a Vec4.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		m[0]*v[0] + m[4]*v[1] + m[8]*v[2] + m[12]*v[3],
		m[1]*v[0] + m[5]*v[1] + m[9]*v[2] + m[13]*v[3],
		m[2]*v[0] + m[6]*v[1] + m[10]*v[2] + m[14]*v[3],
		m[3]*v[0] + m[7]*v[1] + m[11]*v[2] + m[15]*v[3],
	}
}

// Project transforms a point to normalized device coordinates.
// ok is false when the point is behind the eye (w <= 0).
func (m Mat4) Project(p Vec3) (ndc Vec3, ok bool) {
	c := m.MulVec4(Vec4{p.X, p.Y, p.Z, 1})
	if c[3] <= 0 {
		return Vec3{}, false
	}
	return Vec3{c[0] / c[3], c[1] / c[3], c[2] / c[3]}, true
}

// Ptr returns a pointer to the first element (for OpenGL uniform calls).
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}

// Inverse returns the inverse of the matrix.
// Returns identity if the matrix is singular.
func (m Mat4) Inverse() Mat4 {
	var d DMat4
	for i, v := range m {
		d[i] = float64(v)
	}
	return d.Inverse().Mat4()
}
