// Package imageutil decodes and preprocesses images for the encoder.
//
// The encoder expects channel-first float32 tensors [batch, 3, H, W]
// normalized with the backbone's training statistics. This package
// handles decoding (JPEG/PNG), resizing and normalization.
package imageutil

import (
	"fmt"
	"image"
	"io"
	"os"

	// Register decoders for the common caption dataset formats.
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/showtell/showtell/internal/tensor"
)

// ImageNet channel statistics, the standard normalization for
// pretrained convolutional backbones.
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// Config controls image preprocessing.
type Config struct {
	Width  int        // target width in pixels
	Height int        // target height in pixels
	Mean   [3]float32 // per-channel mean subtracted after scaling to [0, 1]
	Std    [3]float32 // per-channel std divided after mean subtraction
}

// DefaultConfig returns the standard 224x224 ImageNet preprocessing.
func DefaultConfig() Config {
	return Config{
		Width:  224,
		Height: 224,
		Mean:   DefaultMean,
		Std:    DefaultStd,
	}
}

// Decode reads and decodes an image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Load reads and decodes an image file.
func Load(path string) (img image.Image, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return Decode(f)
}

// Resize scales an image to the given dimensions using Catmull-Rom
// interpolation. Returns the input unchanged if it already matches.
func Resize(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// ToTensor converts an image to a normalized channel-first tensor
// [1, 3, Height, Width]. The image is resized if necessary, pixel
// values are scaled to [0, 1], then normalized per channel as
// (x - mean) / std.
func ToTensor[B tensor.Backend](img image.Image, cfg Config, backend B) (*tensor.Tensor[float32, B], error) {
	return BatchToTensor([]image.Image{img}, cfg, backend)
}

// BatchToTensor converts a batch of images to a single normalized
// tensor [len(images), 3, Height, Width].
func BatchToTensor[B tensor.Backend](images []image.Image, cfg Config, backend B) (*tensor.Tensor[float32, B], error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("empty image batch")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", cfg.Width, cfg.Height)
	}

	planeSize := cfg.Height * cfg.Width
	data := make([]float32, len(images)*3*planeSize)

	for n, img := range images {
		resized := Resize(img, cfg.Width, cfg.Height)
		bounds := resized.Bounds()
		base := n * 3 * planeSize

		for y := 0; y < cfg.Height; y++ {
			for x := 0; x < cfg.Width; x++ {
				r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

				// RGBA returns 16-bit values.
				idx := y*cfg.Width + x
				data[base+idx] = normalize(r, cfg.Mean[0], cfg.Std[0])
				data[base+planeSize+idx] = normalize(g, cfg.Mean[1], cfg.Std[1])
				data[base+2*planeSize+idx] = normalize(b, cfg.Mean[2], cfg.Std[2])
			}
		}
	}

	shape := tensor.Shape{len(images), 3, cfg.Height, cfg.Width}
	result, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to build image tensor: %w", err)
	}
	return result, nil
}

func normalize(v uint32, mean, std float32) float32 {
	return (float32(v)/65535.0 - mean) / std
}
