package products

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"scatch/utils"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	maxImageSide   = 1200
	maxImageBytes  = 5 << 20
	maxImagePixels = 40_000_000
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
	ErrCorruptImage     = errors.New("image could not be decoded")
	ErrImageDimensions  = errors.New("image dimensions too large")
)

// encoders maps a stored mime type to the format used when a downscaled copy
// is written back. webp has no encoder and falls back to JPEG.
var encoders = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
	"image/bmp":  imaging.BMP,
}

// ProcessImage validates an uploaded image and downscales anything larger than
// 1200x1200, keeping aspect ratio. The mime type is sniffed from the bytes.
func ProcessImage(data []byte) ([]byte, string, error) {
	if len(data) > maxImageBytes {
		return nil, "", ErrImageTooLarge
	}
	mime := http.DetectContentType(data)
	if !utils.SupportedImageTypes[mime] {
		return nil, "", ErrUnsupportedImage
	}

	// Header dimensions are checked before decoding allocates the pixel buffer.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, "", ErrImageDimensions
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	b := img.Bounds()
	if b.Dx() <= maxImageSide && b.Dy() <= maxImageSide {
		return data, mime, nil
	}

	resized := imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	format, ok := encoders[mime]
	if !ok {
		format, mime = imaging.JPEG, "image/jpeg"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), mime, nil
}
