// Package gemini provides a Renderer implementation using Google's Gemini API.
//
// This provider uses the Gemini API backend via the official Go SDK:
// https://github.com/googleapis/go-genai
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mhpenta/autodrip"
	"google.golang.org/genai"
)

// Model name constants - the actual API model names.
const (
	// APIModelNanoBananaPro is the actual API name for Gemini 3 Pro Image
	APIModelNanoBananaPro = "gemini-3-pro-image-preview"

	// APIModelNanoBanana is the actual API name for Gemini 2.5 Flash Image
	APIModelNanoBanana = "gemini-2.5-flash-image"
)

// KeySource supplies the API key at request time. Keys can change between
// requests when the user selects a different project.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Config configures the Renderer.
type Config struct {
	// APIKey is used when Keys is nil or yields an empty key. If both are
	// empty the SDK falls back to GEMINI_API_KEY / GOOGLE_API_KEY.
	APIKey string

	Keys KeySource

	// Model overrides the default API model name.
	Model string
}

// contentGenerator is the part of genai.Models the renderer calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Renderer implements autodrip.Renderer using Google's Gemini API.
type Renderer struct {
	apiKey string
	keys   KeySource
	model  string

	// connect builds a client for one request
	connect func(ctx context.Context, apiKey string) (contentGenerator, error)
}

// Ensure Renderer implements the interface.
var _ autodrip.Renderer = (*Renderer)(nil)

// New creates a new Renderer from a Config.
func New(ctx context.Context, config *Config) (*Renderer, error) {
	if config == nil {
		config = &Config{}
	}

	model := config.Model
	if model == "" {
		model = APIModelNanoBananaPro
	}

	return &Renderer{
		apiKey:  config.APIKey,
		keys:    config.Keys,
		model:   model,
		connect: connectGenAI,
	}, nil
}

// NewWithAPIKey creates a renderer with a fixed API key.
func NewWithAPIKey(ctx context.Context, apiKey string) (*Renderer, error) {
	return New(ctx, &Config{APIKey: apiKey})
}

// connectGenAI creates a fresh SDK client so a key selected after startup
// is picked up on the next request.
func connectGenAI(ctx context.Context, apiKey string) (contentGenerator, error) {
	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	if apiKey != "" {
		clientCfg.APIKey = apiKey
	}
	// If APIKey is empty, the SDK will try GOOGLE_API_KEY or GEMINI_API_KEY env vars

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client.Models, nil
}

// Render sends the prompt and image in one request and returns the first
// inline image of the response.
func (r *Renderer) Render(ctx context.Context, req *autodrip.RenderRequest) (*autodrip.RenderResult, error) {
	if req == nil {
		return nil, errors.New("nil render request")
	}
	if err := autodrip.ValidatePrompt(req.Prompt); err != nil {
		return nil, err
	}
	if err := autodrip.ValidateInputImage(req.Image); err != nil {
		return nil, err
	}

	apiKey, err := r.currentKey(ctx)
	if err != nil {
		return nil, err
	}

	client, err := r.connect(ctx, apiKey)
	if err != nil {
		if apiKey == "" {
			return nil, fmt.Errorf("%w: no API key available: %v", autodrip.ErrInvalidCredential, err)
		}
		return nil, err
	}

	modelName := r.resolveModel(req)

	// Prompt first, then the photo.
	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: req.Prompt},
				{
					InlineData: &genai.Blob{
						Data:     req.Image.Data,
						MIMEType: req.Image.MIMEType,
					},
				},
			},
		},
	}

	result, err := client.GenerateContent(ctx, modelName, contents, buildGenerateContentConfig(req))
	if err != nil {
		if credErr := checkCredentialError(err); credErr != nil {
			return nil, credErr
		}
		if rlErr := checkRateLimitError(err, modelName); rlErr != nil {
			return nil, rlErr
		}
		return nil, fmt.Errorf("render failed: %w", err)
	}

	return parseResult(result)
}

// Models returns the model definitions supported by this provider.
// The configured model comes first.
func (r *Renderer) Models() []autodrip.ModelInfo {
	models := []autodrip.ModelInfo{NanoBananaProInfo, NanoBananaInfo}
	for i, m := range models {
		if m.APIModelName == r.model {
			models[0], models[i] = models[i], models[0]
			return models
		}
	}
	custom := NanoBananaProInfo
	custom.Name = r.model
	custom.APIModelName = r.model
	return append([]autodrip.ModelInfo{custom}, models...)
}

// Close releases any resources held by the renderer.
func (r *Renderer) Close() error {
	// The genai.Client doesn't require explicit closing in the current SDK
	return nil
}

func (r *Renderer) currentKey(ctx context.Context) (string, error) {
	if r.keys != nil {
		key, err := r.keys.APIKey(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", autodrip.ErrInvalidCredential, err)
		}
		if key != "" {
			return key, nil
		}
	}
	return r.apiKey, nil
}

func (r *Renderer) resolveModel(req *autodrip.RenderRequest) string {
	if req.Model != "" {
		return string(req.Model)
	}
	return r.model
}

// buildGenerateContentConfig converts a render request to Gemini's GenerateContentConfig format.
func buildGenerateContentConfig(req *autodrip.RenderRequest) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		// Enable image output
		ResponseModalities: []string{"TEXT", "IMAGE"},

		// Zero is a meaningful temperature here, so always send it
		Temperature: genai.Ptr(req.Temperature),
	}

	imageConfig := &genai.ImageConfig{}

	if req.Size != "" {
		imageConfig.ImageSize = req.Size.String()
	}

	if req.AspectRatio != "" {
		imageConfig.AspectRatio = req.AspectRatio.String()
	}

	genConfig.ImageConfig = imageConfig

	return genConfig
}

// parseResult picks the first non-empty inline image across candidates.
func parseResult(result *genai.GenerateContentResponse) (*autodrip.RenderResult, error) {
	if result == nil || len(result.Candidates) == 0 {
		if reason := blockReason(result); reason != "" {
			return nil, fmt.Errorf("%w: prompt blocked: %s", autodrip.ErrNoImage, reason)
		}
		return nil, fmt.Errorf("%w: empty response from model", autodrip.ErrNoImage)
	}

	out := &autodrip.RenderResult{}
	var text strings.Builder
	found := false
	var finishReason genai.FinishReason

	for _, candidate := range result.Candidates {
		if candidate == nil {
			continue
		}
		if finishReason == "" {
			finishReason = candidate.FinishReason
		}
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if !found && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = autodrip.DefaultOutputMIMEType
				}
				out.Image = autodrip.InputImage{Data: part.InlineData.Data, MIMEType: mime}
				found = true
			}
		}
	}
	out.Text = text.String()

	if !found {
		if finishReason != "" && finishReason != genai.FinishReasonStop && finishReason != genai.FinishReasonUnspecified {
			return nil, fmt.Errorf("%w: generation stopped: %s", autodrip.ErrNoImage, finishReason)
		}
		return nil, autodrip.ErrNoImage
	}

	// Parse usage metadata if available
	if result.UsageMetadata != nil {
		out.UsageMetadata = &autodrip.UsageMetadata{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CandidatesTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return out, nil
}

func blockReason(result *genai.GenerateContentResponse) string {
	if result == nil || result.PromptFeedback == nil {
		return ""
	}
	return string(result.PromptFeedback.BlockReason)
}

// checkCredentialError maps rejected or unknown keys to ErrInvalidCredential.
// Returns nil for any other error.
func checkCredentialError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Status == "UNAUTHENTICATED" ||
			apiErr.Code == http.StatusForbidden || apiErr.Status == "PERMISSION_DENIED" ||
			autodrip.IsCredentialMessage(apiErr.Message) {
			return fmt.Errorf("%w: %s", autodrip.ErrInvalidCredential, apiErr.Message)
		}
		return nil
	}
	if autodrip.IsCredentialMessage(err.Error()) {
		return fmt.Errorf("%w: %v", autodrip.ErrInvalidCredential, err)
	}
	return nil
}

// checkRateLimitError checks if an error from the Gemini API is a rate limit error.
// If so, it wraps it in a RateLimitError for standardized handling; otherwise returns nil.
func checkRateLimitError(err error, model string) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Code != http.StatusTooManyRequests && apiErr.Status != "RESOURCE_EXHAUSTED" {
		return nil
	}

	return &autodrip.RateLimitError{
		RetryAfter: 60 * time.Second, // Default; API doesn't reliably provide Retry-After
		LimitType:  "requests",
		Model:      model,
		Err:        err,
	}
}
