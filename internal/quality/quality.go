// Package quality scores detected face regions for thumbnail selection and
// tie-breaking. Scoring is a pure function over pixel data: same region,
// same score, no side effects.
package quality

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/lumeo/lumeo/internal/database"
)

// Score bounds and component weights. Sharpness dominates, brightness and
// size matter, frontal-ness is a mild correction.
const (
	MinScore = 0.0
	MaxScore = 100.0

	weightSharpness  = 0.35
	weightBrightness = 0.25
	weightSize       = 0.25
	weightFrontal    = 0.15

	// sharpnessNorm is the Laplacian variance treated as "fully sharp".
	sharpnessNorm = 500.0
	// idealArea is the face area (px²) treated as "large enough", 200x200.
	idealArea = 40000.0
	// analysisSize bounds the region size for pixel statistics; bigger
	// faces are downscaled first so cost and sharpness remain comparable
	// across resolutions.
	analysisSize = 200
)

// Score computes quality metrics for one face region of img. The bounding
// box is [top, right, bottom, left] in pixel coordinates, matching the
// layout delivered by the external detector.
//
// A nil image or degenerate box yields the sentinel minimum score instead
// of an error so one bad face never aborts a batch.
func Score(img image.Image, bbox [4]int) database.QualityMetrics {
	region, width, height := extractRegion(img, bbox)
	if region == nil {
		return database.QualityMetrics{}
	}

	gray := toGrayscale(region)

	sharpness := clamp01(laplacianVariance(gray) / sharpnessNorm)
	brightness := brightnessScore(gray)
	size := clamp01(float64(width*height) / idealArea)
	frontal := frontalScore(width, height)

	overall := sharpness*weightSharpness +
		brightness*weightBrightness +
		size*weightSize +
		frontal*weightFrontal

	return database.QualityMetrics{
		Sharpness:  round1(sharpness * MaxScore),
		Brightness: round1(brightness * MaxScore),
		Frontal:    round1(frontal * MaxScore),
		Size:       round1(size * MaxScore),
		Overall:    round1(overall * MaxScore),
	}
}

// extractRegion crops the bounding box from the image, clamped to image
// bounds, and downscales it to the analysis size if needed. Returns the
// original region width and height for size/aspect scoring, or nil for a
// degenerate region.
func extractRegion(img image.Image, bbox [4]int) (*image.RGBA, int, int) {
	if img == nil {
		return nil, 0, 0
	}

	top, right, bottom, left := bbox[0], bbox[1], bbox[2], bbox[3]
	bounds := img.Bounds()
	top = max(top, bounds.Min.Y)
	left = max(left, bounds.Min.X)
	bottom = min(bottom, bounds.Max.Y)
	right = min(right, bounds.Max.X)

	width := right - left
	height := bottom - top
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}

	dstW, dstH := width, height
	if dstW > analysisSize || dstH > analysisSize {
		if dstW > dstH {
			dstH = dstH * analysisSize / dstW
			dstW = analysisSize
		} else {
			dstW = dstW * analysisSize / dstH
			dstH = analysisSize
		}
		dstW = max(dstW, 1)
		dstH = max(dstH, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	src := image.Rect(left, top, right, bottom)
	draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst, width, height
}

// toGrayscale converts a region to a 2D array of luma values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// laplacianVariance measures blur: the variance of the 4-neighbor Laplacian
// response. Low variance means few edges, i.e. a blurry face.
func laplacianVariance(gray [][]float64) float64 {
	width := len(gray)
	if width < 3 {
		return 0
	}
	height := len(gray[0])
	if height < 3 {
		return 0
	}

	responses := make([]float64, 0, (width-2)*(height-2))
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			lap := gray[x-1][y] + gray[x+1][y] + gray[x][y-1] + gray[x][y+1] - 4*gray[x][y]
			responses = append(responses, lap)
		}
	}
	if len(responses) == 0 {
		return 0
	}

	var mean float64
	for _, v := range responses {
		mean += v
	}
	mean /= float64(len(responses))

	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(responses))
}

// brightnessScore peaks at middle gray (127) and falls off linearly toward
// pure black or blown-out white.
func brightnessScore(gray [][]float64) float64 {
	var sum float64
	var count int
	for x := range gray {
		for y := range gray[x] {
			sum += gray[x][y]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	return clamp01(1.0 - math.Abs(mean-127)/127)
}

// frontalScore approximates frontal-ness from the box aspect ratio: detector
// boxes on frontal faces are close to square, profile views are narrow.
func frontalScore(width, height int) float64 {
	if height <= 0 {
		return 0
	}
	aspect := float64(width) / float64(height)
	return clamp01(1.0 - math.Abs(aspect-1.0))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
