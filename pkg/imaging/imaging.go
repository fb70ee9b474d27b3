// Package imaging draws the blank canvas, derives edit masks and reads and writes
// the images the inpainting pipeline passes between steps.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register JPEG decoding for fetched results
	"image/png"
	"io"
	"os"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoding for fetched results

	"layoutpaint/pkg/runerrors"
	"layoutpaint/pkg/utils"
)

// Threshold splits the inverted mask into preserved and editable pixels.
const Threshold = 128

// NewBackground draws a blank canvas of the given size filled with c.
func NewBackground(width, height int, c color.Color) image.Image {
	dc := gg.NewContext(width, height)
	dc.SetColor(c)
	dc.Clear()
	return dc.Image()
}

// BuildEditMask derives the edit-service mask for one step.
//
// The mask is resampled with Catmull-Rom when its size differs from the canvas,
// inverted and thresholded: an inverted value above Threshold keeps the pixel
// opaque, anything else becomes fully transparent. With a 255-inside rectangle
// mask the rectangle interior is therefore the only editable region.
func BuildEditMask(canvas image.Image, mask *image.Gray) *image.NRGBA {
	b := canvas.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, canvas, b.Min, draw.Src)

	m := mask
	if mask.Rect.Dx() != b.Dx() || mask.Rect.Dy() != b.Dy() {
		resized := image.NewGray(out.Rect)
		draw.CatmullRom.Scale(resized, resized.Rect, mask, mask.Rect, draw.Src, nil)
		m = resized
	}

	for y := 0; y < out.Rect.Dy(); y++ {
		maskRow := m.Pix[m.PixOffset(m.Rect.Min.X, m.Rect.Min.Y+y):]
		outRow := out.Pix[y*out.Stride:]
		for x := 0; x < out.Rect.Dx(); x++ {
			inverted := 255 - maskRow[x]
			alpha := uint8(0)
			if inverted > Threshold {
				alpha = 255
			}
			outRow[x*4+3] = alpha
		}
	}
	return out
}

// WriteEditMask writes the edit mask as PNG, replacing any previous mask.
func WriteEditMask(path string, img *image.NRGBA) error {
	return SavePNG(path, img)
}

// SavePNG writes img to path atomically, creating the directory as needed.
func SavePNG(path string, img image.Image) error {
	err := utils.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		return png.Encode(w, img)
	})
	if err != nil {
		return runerrors.IO("imaging.save_png", err, "write %s", path)
	}
	return nil
}

// EncodePNG renders img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a PNG, JPEG or WebP image.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// LoadImage reads the image at path.
func LoadImage(path string) (image.Image, error) {
	const op = "imaging.load"
	f, err := os.Open(path)
	if err != nil {
		return nil, runerrors.IO(op, err, "open %s", path)
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return nil, runerrors.IO(op, err, "read %s", path)
	}
	return img, nil
}
