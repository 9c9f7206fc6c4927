package upscale

// Mat4 is a 4x4 projection matrix stored in column-major order, the layout
// shader uniform buffers expect:
//
//	| m[0] m[4] m[8]  m[12] |
//	| m[1] m[5] m[9]  m[13] |
//	| m[2] m[6] m[10] m[14] |
//	| m[3] m[7] m[11] m[15] |
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float32 {
	return m[c*4+r]
}

// Multiply returns m * o.
func (m Mat4) Multiply(o Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * o[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// JitterMatrix returns a clip-space translation by t.
func JitterMatrix(t Vec2) Mat4 {
	m := Identity()
	m[12] = t.X
	m[13] = t.Y
	return m
}

// Jittered returns the projection with a clip-space sub-pixel offset t
// applied. The offset lands in the third column, so it scales with view depth
// for perspective projections and is a plain translation for orthographic ones.
func (m Mat4) Jittered(t Vec2) Mat4 {
	m[8] += t.X
	m[9] += t.Y
	return m
}

// IsIdentity reports whether m is the identity matrix.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}
