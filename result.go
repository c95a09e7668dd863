package autodrip

// InputImage is the photo sent to the model.
type InputImage struct {
	// Data is the raw image bytes
	Data []byte

	// MIMEType of the image (e.g., "image/jpeg", "image/png")
	MIMEType string
}

// RenderRequest is a single request to a Renderer.
type RenderRequest struct {
	Prompt string
	Image  InputImage

	// Model is the API model name; empty selects the renderer default.
	Model Model

	Temperature float32
	AspectRatio AspectRatio
	Size        ImageSize
}

// RenderResult holds what a Renderer extracted from a response.
type RenderResult struct {
	// Image is the first inline image found in the response.
	Image InputImage

	// Text contains any text the model returned alongside the image
	Text string

	// UsageMetadata contains token/billing information
	UsageMetadata *UsageMetadata
}

// UsageMetadata contains usage information for billing and monitoring.
type UsageMetadata struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
}

// GeneratedImage is the outcome of a successful Generate call.
type GeneratedImage struct {
	// Data contains the raw image bytes
	Data []byte

	// MIMEType of the generated image
	MIMEType string

	// AspectRatio that was requested for this image
	AspectRatio AspectRatio

	Level Level

	// Text is any commentary the model returned
	Text string

	UsageMetadata *UsageMetadata
}

// DataURI encodes the image for display.
func (g *GeneratedImage) DataURI() DataURI {
	return EncodeDataURI(g.MIMEType, g.Data)
}
