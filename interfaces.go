package autodrip

import "context"

// Renderer is the backend interface for image models.
// Implement this interface to add support for new models or providers.
//
// The first model returned by Models() is considered the default model.
type Renderer interface {
	// Render sends one prompt+image request and returns the first image in
	// the response. A response without image data is an error.
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)

	// Models returns the model definitions supported by this provider.
	// The first model in the list is the default.
	Models() []ModelInfo

	// Close releases any resources held by the renderer.
	Close() error
}

// Generator turns an uploaded photo into a restyled one.
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*GeneratedImage, error)
}

// CredentialProvider reports and selects the credential used for generation.
// A nil CredentialProvider means the environment supplies one.
type CredentialProvider interface {
	// HasCredential reports whether a usable credential is already selected.
	HasCredential(ctx context.Context) (bool, error)

	// SelectCredential asks for a credential to be chosen.
	SelectCredential(ctx context.Context) error
}
