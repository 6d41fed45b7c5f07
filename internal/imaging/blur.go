package imaging

import (
	"image"

	imgproc "github.com/disintegration/imaging"
)

const (
	MinBlurLevel = 1
	MaxBlurLevel = 3
)

// sigmaPerLevel is the Gaussian sigma each blur level adds.
const sigmaPerLevel = 1.0

// ClampLevel bounds a requested blur level to [MinBlurLevel, MaxBlurLevel].
func ClampLevel(level int64) int {
	switch {
	case level < MinBlurLevel:
		return MinBlurLevel
	case level > MaxBlurLevel:
		return MaxBlurLevel
	default:
		return int(level)
	}
}

// Blurred returns a Gaussian-blurred copy of img; a higher level blurs more.
func Blurred(img image.Image, level int) *image.NRGBA {
	return imgproc.Blur(img, float64(ClampLevel(int64(level)))*sigmaPerLevel)
}
