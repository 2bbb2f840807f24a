package vision

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/ternarybob/arbor"
)

// blackCutoff is the luminance below which a pixel counts as black
const blackCutoff = 10

// DefaultThreshold is the black-pixel ratio above which a frame is a black screen
const DefaultThreshold = 0.95

// Detector classifies screenshots as black frames
type Detector struct {
	threshold float64
	logger    arbor.ILogger
}

// NewDetector creates a detector; a threshold outside (0, 1] falls back to DefaultThreshold
func NewDetector(threshold float64, logger arbor.ILogger) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{
		threshold: threshold,
		logger:    logger,
	}
}

// Threshold returns the configured black ratio threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Classify decodes the image at path and reports whether it is a black frame.
// Unreadable or empty images are never black: (false, 0).
func (d *Detector) Classify(path string) (bool, float64) {
	img, err := decode(path)
	if err != nil {
		d.logger.Warn().Err(err).Str("path", path).Msg("Black frame check skipped")
		return false, 0
	}
	return d.ClassifyImage(img)
}

// ClassifyImage computes the black-pixel ratio of img
func (d *Detector) ClassifyImage(img image.Image) (bool, float64) {
	ratio := BlackRatio(img)
	return ratio > d.threshold, ratio
}

// BlackRatio returns the fraction of pixels whose BT.601 luminance is below the cutoff.
// An empty image has ratio 0.
func BlackRatio(img image.Image) float64 {
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total <= 0 {
		return 0
	}

	nonBlack := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if gray.Y >= blackCutoff {
				nonBlack++
			}
		}
	}

	return float64(total-nonBlack) / float64(total)
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
