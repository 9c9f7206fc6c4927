package upscale

// Halton returns element index of the Halton sequence in base. The result is
// in [0,1) for index >= 1; index 0 and bases below 2 yield 0.
func Halton(index, base int) float32 {
	if base < 2 || index < 0 {
		return 0
	}
	f := 1.0
	r := 0.0
	b := float64(base)
	for i := index; i > 0; i /= base {
		f /= b
		r += f * float64(i%base)
	}
	return float32(r)
}

// JitterPhaseCount returns the length of the jitter cycle for an upscale
// from renderWidth to displayWidth. The phase count grows with the square of
// the ratio so sample density matches the output resolution.
func JitterPhaseCount(renderWidth, displayWidth int) int {
	if renderWidth <= 0 || displayWidth <= 0 {
		return 1
	}
	ratio := float64(displayWidth) / float64(renderWidth)
	return max(1, int(8*ratio*ratio))
}

// DefaultJitterOffset returns the Halton(2,3) jitter for frame in pixels,
// centered on zero so both components are in [-0.5, 0.5).
func DefaultJitterOffset(frame uint64, renderWidth, displayWidth int) Vec2 {
	phases := uint64(JitterPhaseCount(renderWidth, displayWidth))
	i := int(frame%phases) + 1
	return Vec2{
		X: Halton(i, 2) - 0.5,
		Y: Halton(i, 3) - 0.5,
	}
}

// JitterTranslation converts a pixel offset to a clip-space translation for
// a target of renderSize.
func JitterTranslation(offset Vec2, renderSize Size) Vec2 {
	if renderSize.IsZero() {
		return Vec2{}
	}
	return Vec2{
		X: 2 * offset.X / float32(renderSize.Width),
		Y: 2 * offset.Y / float32(renderSize.Height),
	}
}
