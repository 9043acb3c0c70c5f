package services

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"festiva/internal/models"
)

// Poster processing limits
const (
	maxPosterBytes  = 10 * 1024 * 1024 // 10 MB
	maxPosterWidth  = 1600
	maxPosterHeight = 1200
	posterQuality   = 85
)

var allowedPosterFormats = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

// ProcessedPoster is a poster image normalized for storage
type ProcessedPoster struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// ImageService validates and normalizes uploaded event posters
type ImageService struct{}

// NewImageService creates a new image service
func NewImageService() *ImageService {
	return &ImageService{}
}

// ProcessPoster decodes an uploaded poster, rejects unsupported formats and
// oversized files, downscales to the display bounds and re-encodes as JPEG.
func (s *ImageService) ProcessPoster(reader io.Reader, size int64) (*ProcessedPoster, error) {
	if size > maxPosterBytes {
		return nil, fmt.Errorf("%w: poster exceeds %d bytes", models.ErrInvalidInput, maxPosterBytes)
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxPosterBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read poster: %w", err)
	}
	if len(data) > maxPosterBytes {
		return nil, fmt.Errorf("%w: poster exceeds %d bytes", models.ErrInvalidInput, maxPosterBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid image: %v", models.ErrInvalidInput, err)
	}
	if _, ok := allowedPosterFormats[strings.ToLower(format)]; !ok {
		return nil, fmt.Errorf("%w: unsupported image format %q", models.ErrInvalidInput, format)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxPosterWidth || bounds.Dy() > maxPosterHeight {
		img = imaging.Fit(img, maxPosterWidth, maxPosterHeight, imaging.Lanczos)
		bounds = img.Bounds()
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(posterQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}

	return &ProcessedPoster{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}
