package autodrip

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Storage is an interface for persisting generated images.
// This is a minimal interface designed for easy integration - implementations
// can wrap existing storage clients (GCS, S3, local disk) with this interface.
type Storage interface {
	// SaveFile saves image data to storage and returns a URL or path for it.
	// The contentType is typically the image's MIME type (e.g., "image/png").
	SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error)
}

// StorageResult contains information about a saved image.
type StorageResult struct {
	// URL is where the image can be accessed
	URL string

	// Path is the storage path/key where the image was saved
	Path string

	// Size is the number of bytes saved
	Size int
}

// ExportFilename names an exported result: autodrip-<unix-ms>.<ext>.
func ExportFilename(at time.Time, mimeType string) string {
	return fmt.Sprintf("autodrip-%d.%s", at.UnixMilli(), ExtensionFromMIME(mimeType))
}

// SaveImage writes img to storage under ExportFilename.
func SaveImage(ctx context.Context, storage Storage, img *GeneratedImage, at time.Time) (*StorageResult, error) {
	if storage == nil {
		return nil, ErrStorageNotConfigured
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrEmptyImageData
	}

	path := ExportFilename(at, img.MIMEType)
	url, err := storage.SaveFile(ctx, img.Data, path, img.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", path, err)
	}

	return &StorageResult{
		URL:  url,
		Path: path,
		Size: len(img.Data),
	}, nil
}

// GetMIMEType guesses an image MIME type from a file extension.
func GetMIMEType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// ExtensionFromMIME returns a file extension for common image MIME types.
func ExtensionFromMIME(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
