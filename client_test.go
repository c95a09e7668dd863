package autodrip

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mhpenta/autodrip/ratelimiter"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Generate_BuildsRequest(t *testing.T) {
	mock := &MockRenderer{
		RenderFunc: func(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
			return &RenderResult{
				Image:         InputImage{Data: []byte("result-png"), MIMEType: "image/png"},
				UsageMetadata: &UsageMetadata{PromptTokens: 10, CandidatesTokens: 1120, TotalTokens: 1130},
			}, nil
		},
	}
	client := NewClient(mock, WithLogger(quietLogger()), WithModel("test-model"))
	photo := encodeJPEG(t, 1200, 800)

	img, err := client.Generate(context.Background(), GenerateParams{
		Image:      photo,
		MIMEType:   "image/jpeg",
		Randomness: InitialRandomness,
		Level:      LevelHighKey,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(mock.Requests) != 1 {
		t.Fatalf("expected 1 render request, got %d", len(mock.Requests))
	}
	req := mock.Requests[0]
	if req.AspectRatio != AspectRatio4x3 {
		t.Errorf("aspect ratio = %q, want 4:3", req.AspectRatio)
	}
	if req.Prompt != PromptForLevel(LevelHighKey) {
		t.Errorf("prompt = %q, want level 2 template", req.Prompt)
	}
	if req.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", req.Temperature)
	}
	if req.Size != ImageSize1K {
		t.Errorf("size = %q, want 1K", req.Size)
	}
	if req.Model != "test-model" {
		t.Errorf("model = %q, want test-model", req.Model)
	}
	if !bytes.Equal(req.Image.Data, photo) || req.Image.MIMEType != "image/jpeg" {
		t.Errorf("image payload not passed through unchanged")
	}

	if string(img.Data) != "result-png" || img.MIMEType != "image/png" {
		t.Errorf("unexpected result %q (%s)", img.Data, img.MIMEType)
	}
	if img.AspectRatio != AspectRatio4x3 || img.Level != LevelHighKey {
		t.Errorf("result metadata = %+v", img)
	}
}

func TestClient_Generate_DataURIInput(t *testing.T) {
	mock := &MockRenderer{}
	client := NewClient(mock, WithLogger(quietLogger()))
	photo := encodePNG(t, 900, 1600)
	uri := EncodeDataURI("image/png", photo)

	_, err := client.Generate(context.Background(), GenerateParams{
		Image:      []byte(uri),
		Randomness: RedoRandomness,
		Level:      LevelMaxRizz,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	req := mock.Requests[0]
	if !bytes.Equal(req.Image.Data, photo) {
		t.Error("data URI header should be stripped and payload decoded")
	}
	if req.Image.MIMEType != "image/png" {
		t.Errorf("mime = %q, want image/png from header", req.Image.MIMEType)
	}
	if req.AspectRatio != AspectRatio9x16 {
		t.Errorf("aspect ratio = %q, want 9:16", req.AspectRatio)
	}
	if req.Temperature != 1 {
		t.Errorf("temperature = %v, want 1", req.Temperature)
	}
	if req.Prompt != PromptForLevel(LevelMaxRizz) {
		t.Error("expected level 3 template")
	}
}

func TestClient_Generate_SniffsMislabelledMIME(t *testing.T) {
	mock := &MockRenderer{}
	client := NewClient(mock, WithLogger(quietLogger()))

	_, err := client.Generate(context.Background(), GenerateParams{
		Image:    encodeJPEG(t, 100, 100),
		MIMEType: "image/jpg",
		Level:    LevelLowKey,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := mock.Requests[0].Image.MIMEType; got != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", got)
	}
}

func TestClient_Generate_DefaultsOutputMIME(t *testing.T) {
	mock := &MockRenderer{
		RenderFunc: func(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
			return &RenderResult{Image: InputImage{Data: []byte("x")}}, nil
		},
	}
	client := NewClient(mock, WithLogger(quietLogger()))

	img, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 10, 10), MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("mime = %q, want image/png", img.MIMEType)
	}
	if img.DataURI().MIMEType() != "image/png" {
		t.Errorf("data URI mime = %q", img.DataURI().MIMEType())
	}
}

func TestClient_Generate_Errors(t *testing.T) {
	validPhoto := encodeJPEG(t, 64, 64)

	tests := []struct {
		name       string
		params     GenerateParams
		renderErr  error
		result     *RenderResult
		wantKind   error
		wantRender bool
	}{
		{
			name:       "no image in response",
			params:     GenerateParams{Image: validPhoto, MIMEType: "image/jpeg"},
			result:     &RenderResult{Text: "sorry"},
			wantKind:   ErrGenerationFailed,
			wantRender: true,
		},
		{
			name:       "renderer reports no image",
			params:     GenerateParams{Image: validPhoto, MIMEType: "image/jpeg"},
			renderErr:  ErrNoImage,
			wantKind:   ErrGenerationFailed,
			wantRender: true,
		},
		{
			name:       "credential rejected by provider",
			params:     GenerateParams{Image: validPhoto, MIMEType: "image/jpeg"},
			renderErr:  errors.New("Error 404: Requested entity was not found."),
			wantKind:   ErrInvalidCredential,
			wantRender: true,
		},
		{
			name:       "provider wrapped credential error",
			params:     GenerateParams{Image: validPhoto, MIMEType: "image/jpeg"},
			renderErr:  ErrInvalidCredential,
			wantKind:   ErrInvalidCredential,
			wantRender: true,
		},
		{
			name:       "transport failure",
			params:     GenerateParams{Image: validPhoto, MIMEType: "image/jpeg"},
			renderErr:  errors.New("connection reset by peer"),
			wantKind:   ErrGenerationFailed,
			wantRender: true,
		},
		{
			name:     "undecodable image",
			params:   GenerateParams{Image: []byte("not an image at all"), MIMEType: "image/png"},
			wantKind: ErrGenerationFailed,
		},
		{
			name:     "bad data URI",
			params:   GenerateParams{Image: []byte("data:image/png;base64,@@@"), MIMEType: "image/png"},
			wantKind: ErrGenerationFailed,
		},
		{
			name:     "empty image",
			params:   GenerateParams{MIMEType: "image/png"},
			wantKind: ErrGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockRenderer{
				RenderFunc: func(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
					return tt.result, tt.renderErr
				},
			}
			client := NewClient(mock, WithLogger(quietLogger()))

			_, err := client.Generate(context.Background(), tt.params)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Generate() error = %v, want kind %v", err, tt.wantKind)
			}
			other := ErrInvalidCredential
			if tt.wantKind == ErrInvalidCredential {
				other = ErrGenerationFailed
			}
			if errors.Is(err, other) {
				t.Errorf("error matched both kinds: %v", err)
			}
			if got := len(mock.Requests) > 0; got != tt.wantRender {
				t.Errorf("renderer called = %v, want %v", got, tt.wantRender)
			}
		})
	}
}

func TestClient_Generate_RateLimit(t *testing.T) {
	mock := &MockRenderer{
		ModelsFunc: func() []ModelInfo {
			return []ModelInfo{
				{
					Name:         "test-model",
					Provider:     "test-provider",
					APIModelName: "test-model-api",
					RateLimits: RateLimits{
						RequestsPerMinute: 1,
					},
				},
			}
		},
	}
	client := NewClient(mock, WithLogger(quietLogger()))
	params := GenerateParams{Image: encodeJPEG(t, 32, 32), MIMEType: "image/jpeg"}

	if _, err := client.Generate(context.Background(), params); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}

	_, err := client.Generate(context.Background(), params)
	if !IsRateLimitError(err) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("rate limit should be classified as generation failure, got %v", err)
	}
	if len(mock.Requests) != 1 {
		t.Errorf("rate limited call must not reach the renderer, got %d requests", len(mock.Requests))
	}
}

func TestClient_Generate_TokenEstimation(t *testing.T) {
	mock := &MockRenderer{}
	// Not even one image fits in the token budget.
	client := NewClient(mock, WithLogger(quietLogger()), WithRateLimiter(ratelimiter.New(500, 100)))

	_, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 32, 32), MIMEType: "image/jpeg"})
	if !IsRateLimitError(err) {
		t.Errorf("expected RateLimitError, got %v", err)
	}
}

func TestClient_Generate_ExportsToStorage(t *testing.T) {
	store := &memoryStorage{}
	at := time.UnixMilli(1700000000123)
	client := NewClient(&MockRenderer{},
		WithLogger(quietLogger()),
		WithStorage(store),
		WithClock(func() time.Time { return at }),
	)

	if _, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 16, 16), MIMEType: "image/jpeg"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := store.files["autodrip-1700000000123.png"]; !ok {
		t.Errorf("expected exported file, got %v", store.files)
	}

	// export failures never fail the generation
	store.err = errors.New("disk full")
	if _, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 16, 16), MIMEType: "image/jpeg"}); err != nil {
		t.Errorf("Generate() should ignore export errors, got %v", err)
	}
}

func TestNewClient_DefaultsFromModelInfo(t *testing.T) {
	mock := &MockRenderer{
		ModelsFunc: func() []ModelInfo {
			return []ModelInfo{{Name: "a", APIModelName: "api-a"}, {Name: "b", APIModelName: "api-b"}}
		},
	}
	client := NewClient(mock)

	if client.info == nil || client.info.APIModelName != "api-a" {
		t.Errorf("info = %+v, want api-a", client.info)
	}
	if client.model != "api-a" {
		t.Errorf("model = %q, want api-a", client.model)
	}
	if client.limiter != nil {
		t.Error("no rate limits means no limiter")
	}
}

func TestClient_Close(t *testing.T) {
	closed := false
	client := NewClient(&MockRenderer{CloseFunc: func() error { closed = true; return nil }})
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !closed {
		t.Error("renderer was not closed")
	}
}

func oneKModel() []ModelInfo {
	return []ModelInfo{{
		Name:         "flash",
		APIModelName: "flash-api",
		ImageConstraints: ImageConstraints{
			SupportedAspectRatios: SupportedAspectRatios(),
			SupportedSizes:        []ImageSize{ImageSize1K},
		},
	}}
}

func TestNewClient_UnsupportedSizeFallsBack(t *testing.T) {
	mock := &MockRenderer{ModelsFunc: oneKModel}
	client := NewClient(mock, WithLogger(quietLogger()), WithImageSize(ImageSize4K))

	if client.size != ImageSize1K {
		t.Errorf("size = %q, want 1K", client.size)
	}

	if _, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 16, 16), MIMEType: "image/jpeg"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := mock.Requests[0].Size; got != ImageSize1K {
		t.Errorf("size sent = %q, want 1K", got)
	}
}

func TestNewClient_SupportedSizeKept(t *testing.T) {
	mock := &MockRenderer{
		ModelsFunc: func() []ModelInfo {
			return []ModelInfo{{
				APIModelName:     "pro-api",
				ImageConstraints: ImageConstraints{SupportedSizes: []ImageSize{ImageSize1K, ImageSize2K, ImageSize4K}},
			}}
		},
	}
	client := NewClient(mock, WithLogger(quietLogger()), WithImageSize(ImageSize4K))
	if client.size != ImageSize4K {
		t.Errorf("size = %q, want 4K", client.size)
	}
}

func TestClient_Generate_ModelInputLimit(t *testing.T) {
	mock := &MockRenderer{
		ModelsFunc: func() []ModelInfo {
			return []ModelInfo{{APIModelName: "tiny", ImageConstraints: ImageConstraints{MaxInputImageBytes: 10}}}
		},
	}
	client := NewClient(mock, WithLogger(quietLogger()))

	_, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 16, 16), MIMEType: "image/jpeg"})
	if !errors.Is(err, ErrImageTooLarge) || !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected too-large generation failure, got %v", err)
	}
	if len(mock.Requests) != 0 {
		t.Errorf("oversized image reached the renderer")
	}
}

func TestClient_Generate_UnsupportedAspectRatioOmitted(t *testing.T) {
	mock := &MockRenderer{
		ModelsFunc: func() []ModelInfo {
			return []ModelInfo{{
				APIModelName:     "square-only",
				ImageConstraints: ImageConstraints{SupportedAspectRatios: []AspectRatio{AspectRatio1x1}},
			}}
		},
	}
	client := NewClient(mock, WithLogger(quietLogger()))

	img, err := client.Generate(context.Background(), GenerateParams{Image: encodeJPEG(t, 1200, 800), MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := mock.Requests[0].AspectRatio; got != "" {
		t.Errorf("aspect ratio sent = %q, want none", got)
	}
	if img.AspectRatio != "" {
		t.Errorf("result aspect ratio = %q, want none", img.AspectRatio)
	}
}

func TestPricing_EstimateCost(t *testing.T) {
	p := Pricing{InputTokensPerMillion: 2, OutputTokensPerMillion: 120, ImageGenerationCost: 0.134}

	tests := []struct {
		name  string
		usage *UsageMetadata
		want  float64
	}{
		{"no usage", nil, 0.134},
		{"empty usage", &UsageMetadata{}, 0.134},
		{"tokens", &UsageMetadata{PromptTokens: 500_000, CandidatesTokens: 1_000}, 1.0 + 0.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.EstimateCost(tt.usage)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("EstimateCost() = %v, want %v", got, tt.want)
			}
		})
	}
}
