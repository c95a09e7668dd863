package gemini

import "github.com/mhpenta/autodrip"

var supportedRatios = autodrip.SupportedAspectRatios()

// NanoBananaProInfo is the model info for Gemini 3 Pro Image.
//
// Nano Banana Pro (official name: Gemini 3 Pro Image) is Google DeepMind's
// image generation and editing model, built on Gemini 3 Pro.
var NanoBananaProInfo = autodrip.ModelInfo{
	Name:         "nano-banana-pro",
	Provider:     autodrip.ProviderGeminiAPI,
	APIModelName: APIModelNanoBananaPro,

	ImageConstraints: autodrip.ImageConstraints{
		SupportedAspectRatios: supportedRatios,
		SupportedSizes: []autodrip.ImageSize{
			autodrip.ImageSize1K,
			autodrip.ImageSize2K,
			autodrip.ImageSize4K,
		},
		MaxInputImageBytes: autodrip.MaxImageSize,
	},

	RateLimits: autodrip.RateLimits{
		TokensPerMinute:   4000000,
		RequestsPerMinute: 360,
	},

	// Image output is priced at ~$120/million tokens.
	// Approximate costs: 4K image ~$0.24, 1K/2K image ~$0.134.
	Pricing: autodrip.Pricing{
		InputTokensPerMillion:  2.00,
		OutputTokensPerMillion: 12.00,
		ImageGenerationCost:    0.134,
	},
}

// NanoBananaInfo is the model info for Gemini 2.5 Flash Image.
var NanoBananaInfo = autodrip.ModelInfo{
	Name:         "nano-banana",
	Provider:     autodrip.ProviderGeminiAPI,
	APIModelName: APIModelNanoBanana,

	ImageConstraints: autodrip.ImageConstraints{
		SupportedAspectRatios: supportedRatios,

		// Flash Image only supports ~1024px output (1K)
		SupportedSizes: []autodrip.ImageSize{
			autodrip.ImageSize1K,
		},
		MaxInputImageBytes: autodrip.MaxImageSize,
	},

	RateLimits: autodrip.RateLimits{
		TokensPerMinute:   4000000,
		RequestsPerMinute: 500, // ~500 RPM for Tier 1
	},

	Pricing: autodrip.Pricing{
		InputTokensPerMillion:  0.30,
		OutputTokensPerMillion: 30.00,
		ImageGenerationCost:    0.039,
	},
}
