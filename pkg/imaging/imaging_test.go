package imaging

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutpaint/pkg/geometry"
	"layoutpaint/pkg/runerrors"
)

func alphaChannel(img *image.NRGBA) []byte {
	out := make([]byte, 0, img.Rect.Dx()*img.Rect.Dy())
	for i := 3; i < len(img.Pix); i += 4 {
		out = append(out, img.Pix[i])
	}
	return out
}

func TestNewBackground(t *testing.T) {
	bg := NewBackground(32, 16, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	assert.Equal(t, image.Rect(0, 0, 32, 16), bg.Bounds())

	r, g, b, a := bg.At(31, 15).RGBA()
	assert.Equal(t, []uint32{10, 20, 30, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}

func TestBuildEditMaskRectangleIsEditable(t *testing.T) {
	canvas := NewBackground(64, 64, color.White)
	mask := geometry.RectangleMask(32, 32, 10, 6, 64, 64)

	edit := BuildEditMask(canvas, mask)
	require.Equal(t, image.Rect(0, 0, 64, 64), edit.Rect)

	transparent := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := edit.NRGBAAt(x, y)
			inside := x >= 27 && x < 37 && y >= 29 && y < 35
			if inside {
				assert.Equal(t, uint8(0), c.A, "(%d,%d) should be editable", x, y)
				transparent++
			} else {
				assert.Equal(t, uint8(255), c.A, "(%d,%d) should be preserved", x, y)
			}
			assert.Equal(t, uint8(255), c.R, "colour channels are kept")
		}
	}
	assert.Equal(t, 60, transparent)
}

func TestBuildEditMaskIsDeterministic(t *testing.T) {
	canvas := NewBackground(48, 40, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	mask := geometry.RectangleMask(20, 20, 13, 7, 48, 40)

	first := alphaChannel(BuildEditMask(canvas, mask))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, alphaChannel(BuildEditMask(canvas, mask)))
	}
}

func TestBuildEditMaskResamplesMask(t *testing.T) {
	canvas := NewBackground(64, 64, color.White)
	// Half-resolution mask whose right half is the rectangle.
	mask := geometry.RectangleMask(24, 16, 16, 32, 32, 32)

	edit := BuildEditMask(canvas, mask)
	require.Equal(t, image.Rect(0, 0, 64, 64), edit.Rect)
	assert.Equal(t, uint8(255), edit.NRGBAAt(4, 32).A, "left half preserved")
	assert.Equal(t, uint8(0), edit.NRGBAAt(56, 32).A, "right half editable")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mask.png")
	edit := BuildEditMask(NewBackground(16, 16, color.Black), geometry.RectangleMask(8, 8, 4, 4, 16, 16))

	require.NoError(t, WriteEditMask(path, edit))
	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, edit.Bounds(), loaded.Bounds())
	_, _, _, a := loaded.At(8, 8).RGBA()
	assert.Equal(t, uint32(0), a)

	// Overwrite in place.
	require.NoError(t, WriteEditMask(path, BuildEditMask(NewBackground(16, 16, color.Black), geometry.RectangleMask(0, 0, 0, 0, 16, 16))))
	loaded, err = LoadImage(path)
	require.NoError(t, err)
	_, _, _, a = loaded.At(8, 8).RGBA()
	assert.Equal(t, uint32(0xffff), a)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "mask.png", entries[0].Name())
}

func TestEncodeDecode(t *testing.T) {
	data, err := EncodePNG(NewBackground(8, 8, color.White))
	require.NoError(t, err)

	img, format, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, _, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestLoadImageMissing(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.True(t, runerrors.Is(err, runerrors.KindIO))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
