// Package geometry provides rectangle placement math and binary rectangle masks.
//
// Rectangles are described the way the layout agents emit them: a centre point
// plus a width and height. The lower extent on each axis is centre minus half
// the size, rounded down, and the box always covers exactly width × height
// pixels. For an odd width the box is symmetric around pixel column cx; for an
// even width it is symmetric around the coordinate cx.
package geometry

import (
	"fmt"
	"image"

	"layoutpaint/pkg/runerrors"
)

// MaskOn is the mask intensity inside the rectangle.
const MaskOn = 255

// Rect is a centre/size rectangle as produced by the layout negotiation.
type Rect struct {
	CenterX int `json:"center_x"`
	CenterY int `json:"center_y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// FromTuple converts a [center_x, center_y, width, height] tuple.
func FromTuple(tuple []int) (Rect, error) {
	if len(tuple) != 4 {
		return Rect{}, runerrors.Geometry("geometry.from_tuple", "position tuple must have 4 values, got %d", len(tuple))
	}
	return Rect{CenterX: tuple[0], CenterY: tuple[1], Width: tuple[2], Height: tuple[3]}, nil
}

// Tuple returns the rectangle as [center_x, center_y, width, height].
func (r Rect) Tuple() [4]int {
	return [4]int{r.CenterX, r.CenterY, r.Width, r.Height}
}

// Bounds returns the half-open pixel bounding box.
func (r Rect) Bounds() image.Rectangle {
	x0 := r.CenterX - r.Width/2
	y0 := r.CenterY - r.Height/2
	return image.Rect(x0, y0, x0+r.Width, y0+r.Height)
}

// String renders the rectangle as its tuple.
func (r Rect) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", r.CenterX, r.CenterY, r.Width, r.Height)
}

// Validate checks that all fields are non-negative, the size is non-zero and
// the bounding box lies within [0, canvasW) × [0, canvasH).
func (r Rect) Validate(canvasW, canvasH int) error {
	const op = "geometry.validate"
	if r.CenterX < 0 || r.CenterY < 0 || r.Width < 0 || r.Height < 0 {
		return runerrors.Geometry(op, "rectangle %s has negative fields", r)
	}
	if r.Width == 0 || r.Height == 0 {
		return runerrors.Geometry(op, "rectangle %s has zero area", r)
	}
	canvas := image.Rect(0, 0, canvasW, canvasH)
	if b := r.Bounds(); !b.In(canvas) {
		return runerrors.Geometry(op, "rectangle %s spans %v, outside the %dx%d canvas", r, b, canvasW, canvasH)
	}
	return nil
}

// Overlaps reports whether two bounding boxes share at least one pixel.
// Boxes that only touch along an edge do not overlap.
func (r Rect) Overlaps(other Rect) bool {
	return r.Bounds().Overlaps(other.Bounds())
}

// FindOverlap returns the first pair of overlapping rectangles in order.
func FindOverlap(rects []Rect) (i, j int, found bool) {
	for i = 0; i < len(rects); i++ {
		for j = i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// RectangleMask returns a canvas-sized mask that is MaskOn inside the rectangle
// and 0 elsewhere. The rectangle is not clamped or validated; pixels falling
// outside the canvas are simply not part of the grid.
func RectangleMask(cx, cy, width, height, canvasW, canvasH int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, canvasW, canvasH))
	box := Rect{CenterX: cx, CenterY: cy, Width: width, Height: height}.Bounds().Intersect(mask.Rect)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+canvasW]
		for x := box.Min.X; x < box.Max.X; x++ {
			row[x] = MaskOn
		}
	}
	return mask
}

// Mask is a convenience wrapper around RectangleMask.
func (r Rect) Mask(canvasW, canvasH int) *image.Gray {
	return RectangleMask(r.CenterX, r.CenterY, r.Width, r.Height, canvasW, canvasH)
}
