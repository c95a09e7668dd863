package autodrip

import (
	"log/slog"
	"time"

	"github.com/mhpenta/autodrip/ratelimiter"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStorage exports every finished image to storage.
func WithStorage(storage Storage) ClientOption {
	return func(c *Client) {
		c.storage = storage
	}
}

// WithModel overrides the API model name.
func WithModel(model Model) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithImageSize sets the output resolution tier.
func WithImageSize(size ImageSize) ClientOption {
	return func(c *Client) {
		c.size = size
	}
}

// WithRateLimiter replaces the default per-model budget. Pass nil to disable
// rate limiting.
func WithRateLimiter(limiter ratelimiter.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithClock sets the time source used for export filenames.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a Client for renderer. The renderer's first model is
// the default and its rate limits seed the request budget.
//
// Example:
//
//	r, err := gemini.New(ctx, &gemini.Config{APIKey: apiKey})
//	if err != nil {
//	    return err
//	}
//	client := autodrip.NewClient(r, autodrip.WithLogger(slog.Default()))
func NewClient(renderer Renderer, opts ...ClientOption) *Client {
	c := &Client{
		renderer:       renderer,
		size:           ImageSize1K,
		logger:         slog.Default(),
		tokenEstimator: NewSimpleTokenEstimator(),
		now:            time.Now,
	}

	if models := renderer.Models(); len(models) > 0 {
		info := models[0]
		c.info = &info
		c.model = Model(info.APIModelName)
		if info.RateLimits.TokensPerMinute > 0 || info.RateLimits.RequestsPerMinute > 0 {
			c.limiter = ratelimiter.New(info.RateLimits.TokensPerMinute, info.RateLimits.RequestsPerMinute)
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.info != nil && len(c.info.ImageConstraints.SupportedSizes) > 0 && !c.info.SupportsSize(c.size) {
		fallback := c.info.ImageConstraints.SupportedSizes[0]
		c.logger.Warn("image size not supported by model, falling back",
			"model", c.info.APIModelName,
			"requested", string(c.size),
			"using", string(fallback),
		)
		c.size = fallback
	}

	return c
}
