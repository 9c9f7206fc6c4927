package upscale

import (
	"fmt"
	"math"
	"strings"
)

// Quality selects the ratio between display and render resolution.
type Quality int

const (
	// QualityOff disables upscaling: the render size equals the display size
	// and no view context is engaged.
	QualityOff Quality = -1

	// QualityCustom uses a caller supplied scale.
	QualityCustom Quality = 0

	QualityNativeAA         Quality = 1
	QualityUltraQuality     Quality = 2
	QualityQuality          Quality = 3
	QualityBalanced         Quality = 4
	QualityPerformance      Quality = 5
	QualityUltraPerformance Quality = 6
)

// Scale returns the display/render ratio of q. QualityOff and QualityCustom
// return 1; custom scales are owned by the Controller.
func (q Quality) Scale() float32 {
	switch q {
	case QualityUltraQuality:
		return 1.2
	case QualityQuality:
		return 1.5
	case QualityBalanced:
		return 1.7
	case QualityPerformance:
		return 2.0
	case QualityUltraPerformance:
		return 3.0
	default:
		return 1.0
	}
}

// Enabled reports whether q engages upscaling.
func (q Quality) Enabled() bool {
	return q != QualityOff
}

// RenderSize returns the maximum render size for display at quality q.
func (q Quality) RenderSize(display Size) Size {
	if !q.Enabled() {
		return display
	}
	return MaxRenderSize(display, q.Scale())
}

// String returns the quality level name.
func (q Quality) String() string {
	switch q {
	case QualityOff:
		return "Off"
	case QualityCustom:
		return "Custom"
	case QualityNativeAA:
		return "NativeAA"
	case QualityUltraQuality:
		return "UltraQuality"
	case QualityQuality:
		return "Quality"
	case QualityBalanced:
		return "Balanced"
	case QualityPerformance:
		return "Performance"
	case QualityUltraPerformance:
		return "UltraPerformance"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ParseQuality parses a quality level name case-insensitively.
func ParseQuality(s string) (Quality, error) {
	for q := QualityOff; q <= QualityUltraPerformance; q++ {
		if strings.EqualFold(q.String(), s) {
			return q, nil
		}
	}
	return QualityOff, fmt.Errorf("upscale: unknown quality %q", s)
}

// MaxRenderSize divides display by scale, truncating toward zero.
// Scales below 1 are treated as 1; the render size never exceeds the display.
func MaxRenderSize(display Size, scale float32) Size {
	if scale < 1 {
		scale = 1
	}
	// Widen without float32 representation error so 1920/1.2 stays 1600.
	s := math.Round(float64(scale)*1e6) / 1e6
	return Size{
		Width:  int(float64(display.Width) / s),
		Height: int(float64(display.Height) / s),
	}
}
