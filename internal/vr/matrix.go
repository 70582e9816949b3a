package vr

import "github.com/go-gl/mathgl/mgl64"

// Matrix34 is a row-major 3x4 rigid transform: a 3x3 rotation block with the
// translation in the last column.
type Matrix34 [3][4]float64

// Identity34 returns the identity transform.
func Identity34() Matrix34 {
	return Matrix34{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// Translation returns the last column.
func (m Matrix34) Translation() mgl64.Vec3 {
	return mgl64.Vec3{m[0][3], m[1][3], m[2][3]}
}

// MulRowVec3 multiplies v as a row vector by the rotation block (v·R), which
// is the transpose of R applied to v. The translation column does not take
// part: v is a direction.
func (m Matrix34) MulRowVec3(v mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for j := 0; j < 3; j++ {
		out[j] = v[0]*m[0][j] + v[1]*m[1][j] + v[2]*m[2][j]
	}
	return out
}

// Mat4 widens m to a homogeneous 4x4 transform.
func (m Matrix34) Mat4() mgl64.Mat4 {
	var out mgl64.Mat4
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			out.Set(row, col, m[row][col])
		}
	}
	out.Set(3, 3, 1)
	return out
}

// Matrix34FromMat4 drops the homogeneous row of t.
func Matrix34FromMat4(t mgl64.Mat4) Matrix34 {
	var out Matrix34
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			out[row][col] = t.At(row, col)
		}
	}
	return out
}
