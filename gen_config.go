package autodrip

import "fmt"

// Model represents a specific image generation model.
type Model string

// ImageSize represents the output resolution for generated images.
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"
)

// AspectRatio represents the aspect ratio for generated images.
type AspectRatio string

const (
	AspectRatio1x1  AspectRatio = "1:1"
	AspectRatio3x4  AspectRatio = "3:4"
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio16x9 AspectRatio = "16:9"
)

// Level selects how hard the prompt pushes the transformation.
type Level int

const (
	LevelLowKey  Level = 1
	LevelHighKey Level = 2
	LevelMaxRizz Level = 3

	DefaultLevel = LevelHighKey
)

// Valid reports whether l is one of the three defined levels.
func (l Level) Valid() bool {
	return l >= LevelLowKey && l <= LevelMaxRizz
}

// Label returns the display name of the level.
func (l Level) Label() string {
	switch l {
	case LevelLowKey:
		return "LOW KEY"
	case LevelHighKey:
		return "HIGH KEY"
	case LevelMaxRizz:
		return "MAX RIZZ"
	default:
		return fmt.Sprintf("LEVEL %d", int(l))
	}
}

// Levels lists the selectable levels in display order.
func Levels() []Level {
	return []Level{LevelLowKey, LevelHighKey, LevelMaxRizz}
}

// Randomness used for sampling. A first pass is deterministic; a redo asks
// for a different take on the same photo.
const (
	InitialRandomness float32 = 0
	RedoRandomness    float32 = 1
)

// GenerateParams describes a single generation call. It is built per call
// and not retained.
type GenerateParams struct {
	// Image is either raw encoded bytes or a data URI.
	Image []byte

	// MIMEType of Image, e.g. "image/jpeg".
	MIMEType string

	// Randomness is passed to the model as its temperature.
	Randomness float32

	Level Level
}

// ImageSizeString returns the string representation for API calls.
func (s ImageSize) String() string {
	return string(s)
}

// String returns the ratio as sent to the API.
func (a AspectRatio) String() string {
	return string(a)
}

// String returns the model identifier.
func (m Model) String() string {
	return string(m)
}
