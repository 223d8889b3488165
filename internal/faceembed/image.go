package faceembed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 90

// NormalizeImage decodes any supported format, flattens transparency onto
// white, converts to 8-bit RGB, scales the longest side down to maxSize and
// re-encodes as JPEG. Every image reaching a Backend goes through here once.
func NormalizeImage(data []byte, maxSize int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("failed to decode image: empty bounds %dx%d", width, height)
	}

	newWidth, newHeight := width, height
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		if width > height {
			newWidth = maxSize
			newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
		} else {
			newHeight = maxSize
			newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if newWidth == width && newHeight == height {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame decodes a base64 frame, either raw or as a data URL such as
// "data:image/jpeg;base64,...".
func DecodeFrame(frame string) ([]byte, error) {
	frame = strings.TrimSpace(frame)
	if strings.HasPrefix(frame, "data:") {
		_, payload, ok := strings.Cut(frame, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data URL without payload", ErrInvalidFrame)
		}
		frame = payload
	}
	if frame == "" {
		return nil, fmt.Errorf("%w: empty frame", ErrInvalidFrame)
	}

	data, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(frame, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
		}
	}
	return data, nil
}
