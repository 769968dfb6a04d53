// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types, plus the shared logging, diagnostic and observer plumbing.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// It is queued on a texture descriptor and flushed the next time the texture is resolved.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// DecodeImage decodes PNG or JPEG bytes into RGBA staging data.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - TextureStagingData: the decoded pixels and dimensions
//   - error: error if decoding fails
func DecodeImage(data []byte) (TextureStagingData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return toStagingData(img), nil
}

// LoadImage reads and decodes a PNG or JPEG file from disk into RGBA staging data.
//
// Parameters:
//   - path: the file path of the image
//
// Returns:
//   - TextureStagingData: the decoded pixels and dimensions
//   - error: error if the file cannot be opened or decoded
func LoadImage(path string) (TextureStagingData, error) {
	file, err := os.Open(path)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode texture file %s: %w", path, err)
	}
	return toStagingData(img), nil
}

func toStagingData(img image.Image) TextureStagingData {
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}
}
