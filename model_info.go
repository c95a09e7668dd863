package autodrip

// Provider names a model backend.
type Provider string

const (
	ProviderGeminiAPI Provider = "gemini"
)

// RateLimits defines rate limiting parameters for a model.
type RateLimits struct {
	TokensPerMinute   int
	RequestsPerMinute int
}

// Pricing defines cost information for a model.
type Pricing struct {
	InputTokensPerMillion  float64
	OutputTokensPerMillion float64
	ImageGenerationCost    float64 // Per image at the default size
}

// EstimateCost returns the approximate USD cost of one generation. Without
// usage metadata it falls back to the flat per-image cost.
func (p Pricing) EstimateCost(u *UsageMetadata) float64 {
	if u == nil || (u.PromptTokens == 0 && u.CandidatesTokens == 0) {
		return p.ImageGenerationCost
	}
	return float64(u.PromptTokens)*p.InputTokensPerMillion/1e6 +
		float64(u.CandidatesTokens)*p.OutputTokensPerMillion/1e6
}

// ImageConstraints defines supported image configurations for a model.
type ImageConstraints struct {
	SupportedAspectRatios []AspectRatio
	SupportedSizes        []ImageSize
	MaxInputImageBytes    int
}

// ModelInfo contains complete metadata for a model.
type ModelInfo struct {
	// Identity
	Name         string   // Public model name (e.g., "nano-banana-pro")
	Provider     Provider // Which provider serves this model
	APIModelName string   // Actual API name (e.g., "gemini-3-pro-image-preview")

	ImageConstraints ImageConstraints
	RateLimits       RateLimits
	Pricing          Pricing
}

// SupportsSize reports whether the model can render at size s.
func (m ModelInfo) SupportsSize(s ImageSize) bool {
	for _, sz := range m.ImageConstraints.SupportedSizes {
		if sz == s {
			return true
		}
	}
	return false
}

// SupportsAspectRatio reports whether the model accepts ratio a.
func (m ModelInfo) SupportsAspectRatio(a AspectRatio) bool {
	for _, r := range m.ImageConstraints.SupportedAspectRatios {
		if r == a {
			return true
		}
	}
	return false
}
