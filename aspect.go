package autodrip

import (
	"bytes"
	"fmt"
	"image"
	"math"

	// Decoders for the formats uploads arrive in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// aspectCandidate pairs a supported ratio with its numeric value.
type aspectCandidate struct {
	ratio AspectRatio
	value float64
}

// supportedAspectRatios is the fixed, ordered candidate list. Ties are
// resolved in favour of the earlier entry.
var supportedAspectRatios = []aspectCandidate{
	{AspectRatio1x1, 1.0},
	{AspectRatio3x4, 3.0 / 4.0},
	{AspectRatio4x3, 4.0 / 3.0},
	{AspectRatio9x16, 9.0 / 16.0},
	{AspectRatio16x9, 16.0 / 9.0},
}

// SupportedAspectRatios returns the candidate ratios in tie-break order.
func SupportedAspectRatios() []AspectRatio {
	out := make([]AspectRatio, len(supportedAspectRatios))
	for i, c := range supportedAspectRatios {
		out[i] = c.ratio
	}
	return out
}

// NearestAspectRatio returns the supported ratio closest to width/height.
// Non-positive dimensions fall back to 1:1.
func NearestAspectRatio(width, height int) AspectRatio {
	if width <= 0 || height <= 0 {
		return AspectRatio1x1
	}
	actual := float64(width) / float64(height)

	best := supportedAspectRatios[0]
	bestDiff := math.Abs(actual - best.value)
	for _, c := range supportedAspectRatios[1:] {
		// strictly less keeps the earliest candidate on ties
		if diff := math.Abs(actual - c.value); diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best.ratio
}

// ImageDimensions reads the pixel size from the image header without
// decoding the full image.
func ImageDimensions(data []byte) (width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading image dimensions: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s image has invalid dimensions %dx%d", format, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}
