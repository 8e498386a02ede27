package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
)

// CoverOptions controls how downloaded artwork is post-processed.
type CoverOptions struct {
	Resize  bool
	MaxSize int
	ToJPEG  bool
}

// ImageService provides image processing operations for cover art.
//
// Example usage:
//
//	svc := NewImageService()
//	data, _ := client.DownloadBytes(ctx, model.LargeArtURL(row.ArtURL))
//	processed, err := svc.ProcessCover(ctx, data, CoverOptions{Resize: true, MaxSize: 500, ToJPEG: true})
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// ProcessCover applies the configured resize and conversion to raw artwork.
//
// With neither option set the input is returned untouched.
func (s *ImageService) ProcessCover(ctx context.Context, data []byte, opts CoverOptions) ([]byte, error) {
	switch {
	case opts.Resize && opts.MaxSize > 0:
		return s.ResizeImage(ctx, data, opts.MaxSize, opts.MaxSize)
	case opts.ToJPEG:
		return s.ConvertToJPEG(ctx, data)
	default:
		return data, nil
	}
}

// ResizeImage resizes an image to fit within the specified maximum dimensions.
//
// The aspect ratio is preserved and images already within bounds keep their
// size. The result is always JPEG-encoded. The Catmull-Rom algorithm is used
// for high-quality resizing.
//
// Example:
//
//	// A 1200x1200 cover becomes 700x700
//	resized, err := svc.ResizeImage(ctx, imageData, 700, 700)
func (s *ImageService) ResizeImage(ctx context.Context, data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return encodeJPEG(dst)
}

// ConvertToJPEG re-encodes an image (JPEG, PNG) as JPEG with 90% quality.
func (s *ImageService) ConvertToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

// fitWithin scales width x height down to fit the box, keeping the aspect ratio.
func fitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}
	ratio := float64(width) / float64(height)
	if float64(maxWidth)/float64(maxHeight) > ratio {
		// Height is the limiting factor
		return max(1, int(float64(maxHeight)*ratio)), maxHeight
	}
	return maxWidth, max(1, int(float64(maxWidth)/ratio))
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
