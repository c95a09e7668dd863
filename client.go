package autodrip

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mhpenta/autodrip/ratelimiter"
)

// Client implements Generator on top of a Renderer. It infers the aspect
// ratio, picks the prompt for the level, applies the shared request budget
// and classifies every failure as ErrInvalidCredential or ErrGenerationFailed.
type Client struct {
	renderer Renderer

	// model is the API model name sent with each request
	model Model
	info  *ModelInfo
	size  ImageSize

	limiter        ratelimiter.Limiter
	tokenEstimator TokenEstimator

	// Logger for structured logging
	logger *slog.Logger

	// Storage for exporting finished images (optional)
	storage Storage

	now func() time.Time
}

// Ensure Client implements Generator.
var _ Generator = (*Client)(nil)

// Generate restyles params.Image and returns the first image the model produced.
func (c *Client) Generate(ctx context.Context, params GenerateParams) (*GeneratedImage, error) {
	start := time.Now()

	model, size, limiter, storage := c.model, c.size, c.limiter, c.storage

	raw, err := DecodeImagePayload(params.Image)
	if err != nil {
		c.logger.Warn("could not decode image payload", "error", err.Error())
		return nil, classify("decode", err)
	}

	mimeType := params.MIMEType
	if mimeType == "" {
		mimeType = DataURI(params.Image).MIMEType()
	}
	if !ValidMIMETypes[mimeType] {
		// declared types like image/jpg are common; trust the bytes instead
		if sniffed := http.DetectContentType(raw); ValidMIMETypes[sniffed] {
			mimeType = sniffed
		}
	}
	input := InputImage{Data: raw, MIMEType: mimeType}
	if err := ValidateInputImage(input); err != nil {
		c.logger.Warn("input image rejected", "mime_type", mimeType, "size", len(raw), "error", err.Error())
		return nil, classify("validate", err)
	}

	if c.info != nil && c.info.ImageConstraints.MaxInputImageBytes > 0 && len(raw) > c.info.ImageConstraints.MaxInputImageBytes {
		err := fmt.Errorf("%w: %d bytes (model %s accepts %d)", ErrImageTooLarge, len(raw), model, c.info.ImageConstraints.MaxInputImageBytes)
		c.logger.Warn("input image rejected", "mime_type", mimeType, "size", len(raw), "error", err.Error())
		return nil, classify("validate", err)
	}

	width, height, err := ImageDimensions(raw)
	if err != nil {
		c.logger.Warn("could not read image dimensions", "mime_type", mimeType, "error", err.Error())
		return nil, classify("decode", err)
	}

	ratio := NearestAspectRatio(width, height)
	if c.info != nil && len(c.info.ImageConstraints.SupportedAspectRatios) > 0 && !c.info.SupportsAspectRatio(ratio) {
		// let the model keep the input's framing
		c.logger.Warn("aspect ratio not supported by model, sending none", "model", string(model), "aspect_ratio", string(ratio))
		ratio = ""
	}
	prompt := PromptForLevel(params.Level)

	c.logger.Debug("starting generation",
		"model", string(model),
		"level", int(params.Level),
		"randomness", params.Randomness,
		"width", width,
		"height", height,
		"aspect_ratio", string(ratio),
		"image_size", len(raw),
	)

	if err := c.checkRateLimit(limiter, model, prompt, size); err != nil {
		c.logger.Warn("rate limit hit",
			"model", string(model),
			"error", err.Error(),
		)
		return nil, classify("ratelimit", err)
	}

	result, err := c.renderer.Render(ctx, &RenderRequest{
		Prompt:      prompt,
		Image:       input,
		Model:       model,
		Temperature: params.Randomness,
		AspectRatio: ratio,
		Size:        size,
	})
	duration := time.Since(start)

	if err != nil {
		classified := classify("render", err)
		c.logger.Error("generation failed",
			"model", string(model),
			"duration_ms", duration.Milliseconds(),
			"invalid_credential", IsInvalidCredential(classified),
			"error", err.Error(),
		)
		return nil, classified
	}
	if result == nil || len(result.Image.Data) == 0 {
		c.logger.Error("generation returned no image",
			"model", string(model),
			"duration_ms", duration.Milliseconds(),
		)
		return nil, classify("parse", ErrNoImage)
	}

	outMIME := result.Image.MIMEType
	if outMIME == "" {
		outMIME = DefaultOutputMIMEType
	}
	img := &GeneratedImage{
		Data:          result.Image.Data,
		MIMEType:      outMIME,
		AspectRatio:   ratio,
		Level:         params.Level,
		Text:          result.Text,
		UsageMetadata: result.UsageMetadata,
	}

	// Log success with usage metadata
	logAttrs := []any{
		"model", string(model),
		"duration_ms", duration.Milliseconds(),
		"aspect_ratio", string(ratio),
		"mime_type", outMIME,
		"bytes", len(img.Data),
	}
	if result.UsageMetadata != nil {
		logAttrs = append(logAttrs,
			"prompt_tokens", result.UsageMetadata.PromptTokens,
			"response_tokens", result.UsageMetadata.CandidatesTokens,
			"total_tokens", result.UsageMetadata.TotalTokens,
		)
	}
	if c.info != nil {
		logAttrs = append(logAttrs, "estimated_cost_usd", c.info.Pricing.EstimateCost(result.UsageMetadata))
	}
	c.logger.Info("generation completed", logAttrs...)

	if storage != nil {
		saved, err := SaveImage(ctx, storage, img, c.now())
		if err != nil {
			c.logger.Warn("export failed", "error", err.Error())
		} else {
			c.logger.Info("image exported", "path", saved.Path, "url", saved.URL, "bytes", saved.Size)
		}
	}

	return img, nil
}

// Models returns the renderer's model definitions.
func (c *Client) Models() []ModelInfo {
	return c.renderer.Models()
}

// Close releases renderer resources.
func (c *Client) Close() error {
	if err := c.renderer.Close(); err != nil {
		return fmt.Errorf("closing renderer: %w", err)
	}
	return nil
}

// checkRateLimit consumes budget for one request. It never waits.
func (c *Client) checkRateLimit(limiter ratelimiter.Limiter, model Model, prompt string, size ImageSize) error {
	if limiter == nil {
		return nil
	}

	estimatedTokens := c.tokenEstimator.EstimateRequest(prompt, size)
	if !limiter.TryConsume(estimatedTokens) {
		return &RateLimitError{
			RetryAfter: limiter.TimeUntilAvailable(estimatedTokens),
			LimitType:  "requests",
			Model:      string(model),
		}
	}

	return nil
}
