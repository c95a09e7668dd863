package autodrip

import (
	"context"
)

// MockRenderer is a mock implementation of Renderer.
type MockRenderer struct {
	RenderFunc func(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	ModelsFunc func() []ModelInfo
	CloseFunc  func() error

	Requests []*RenderRequest
}

func (m *MockRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	m.Requests = append(m.Requests, req)
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, req)
	}
	return &RenderResult{Image: InputImage{Data: []byte("png"), MIMEType: "image/png"}}, nil
}

func (m *MockRenderer) Models() []ModelInfo {
	if m.ModelsFunc != nil {
		return m.ModelsFunc()
	}
	return []ModelInfo{}
}

func (m *MockRenderer) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// memoryStorage keeps saved files in a map.
type memoryStorage struct {
	files map[string][]byte
	err   error
}

func (s *memoryStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[path] = data
	return "mem://" + path, nil
}
