package decode

import (
	"fmt"
	"image"
	"image/draw"

	// Decoders the media client understands. Registration is all that is
	// needed; image.Decode picks the right one by sniffing the header.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Pixmap is a decoded pixel buffer in RGBA order, the form the rendering
// collaborator consumes directly.
type Pixmap struct {
	Width  int
	Height int
	Stride int
	Pix    []uint8
}

// decodeImage interprets the stream as a compressed image and produces a
// pixel buffer. Failures carry the decoder's own error string.
func decodeImage(src Stream) (*Pixmap, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &Pixmap{
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
		Stride: rgba.Stride,
		Pix:    rgba.Pix,
	}, nil
}
