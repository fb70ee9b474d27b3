// Package layout holds the negotiated object layout and its on-disk form.
package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"layoutpaint/pkg/geometry"
	"layoutpaint/pkg/runerrors"
	"layoutpaint/pkg/utils"
)

// ErrInvalidLayout marks a layout whose lists disagree or whose tuples are malformed.
var ErrInvalidLayout = errors.New("invalid layout")

// Layout is the ordered set of named object placements agreed by the negotiation.
// It is written once by the persister tool and read once by the pipeline.
type Layout struct {
	ObjectNames  []string `json:"object_name"`
	PositionList [][4]int `json:"position_list"`
	NumObjects   int      `json:"num_objects"`
}

// wireLayout is the loose decoding form; tuples are checked for arity before conversion.
type wireLayout struct {
	ObjectNames  []string `json:"object_name"`
	PositionList [][]int  `json:"position_list"`
	NumObjects   *int     `json:"num_objects"`
}

// ObjectSpec is one named placement.
type ObjectSpec struct {
	Name     string
	Position geometry.Rect
}

// New builds a layout from parallel name and tuple lists, checking the counts
// and that every tuple has exactly four values.
func New(names []string, numObjects int, positions [][]int) (*Layout, error) {
	const op = "layout.new"
	if numObjects < 1 {
		return nil, runerrors.Wrap(runerrors.KindNegotiation, op, ErrInvalidLayout,
			"a layout needs at least one object, num_objects is %d", numObjects)
	}
	if len(positions) != numObjects {
		return nil, runerrors.Wrap(runerrors.KindNegotiation, op, ErrInvalidLayout,
			"position_list has %d items but num_objects is %d", len(positions), numObjects)
	}
	if len(names) != numObjects {
		return nil, runerrors.Wrap(runerrors.KindNegotiation, op, ErrInvalidLayout,
			"object_name has %d items but num_objects is %d", len(names), numObjects)
	}

	l := &Layout{
		ObjectNames:  append([]string(nil), names...),
		NumObjects:   numObjects,
		PositionList: make([][4]int, 0, numObjects),
	}
	for i, tuple := range positions {
		if len(tuple) != 4 {
			return nil, runerrors.Wrap(runerrors.KindGeometry, op, ErrInvalidLayout,
				"Error generating mask for %s_%d: expected 4 values, got %d", names[i], i, len(tuple))
		}
		l.PositionList = append(l.PositionList, [4]int{tuple[0], tuple[1], tuple[2], tuple[3]})
	}
	return l, nil
}

// Objects returns the layout as named rectangles in order.
func (l *Layout) Objects() []ObjectSpec {
	objects := make([]ObjectSpec, len(l.PositionList))
	for i, p := range l.PositionList {
		objects[i] = ObjectSpec{
			Name:     l.ObjectNames[i],
			Position: geometry.Rect{CenterX: p[0], CenterY: p[1], Width: p[2], Height: p[3]},
		}
	}
	return objects
}

// Rects returns the placements without names.
func (l *Layout) Rects() []geometry.Rect {
	objects := l.Objects()
	rects := make([]geometry.Rect, len(objects))
	for i := range objects {
		rects[i] = objects[i].Position
	}
	return rects
}

// CheckCounts verifies len(ObjectNames) == len(PositionList) == NumObjects and
// that there is at least one object.
func (l *Layout) CheckCounts() error {
	if l.NumObjects < 1 {
		return runerrors.Wrap(runerrors.KindGeometry, "layout.check_counts", ErrInvalidLayout,
			"a layout needs at least one object, num_objects is %d", l.NumObjects)
	}
	if len(l.ObjectNames) != l.NumObjects || len(l.PositionList) != l.NumObjects {
		return runerrors.Wrap(runerrors.KindGeometry, "layout.check_counts", ErrInvalidLayout,
			"num_objects is %d but got %d names and %d positions",
			l.NumObjects, len(l.ObjectNames), len(l.PositionList))
	}
	return nil
}

// Validate checks counts, that every box lies inside the canvas and that no
// two boxes overlap.
func (l *Layout) Validate(canvasW, canvasH int) error {
	if err := l.CheckCounts(); err != nil {
		return err
	}
	rects := l.Rects()
	for i, r := range rects {
		if err := r.Validate(canvasW, canvasH); err != nil {
			return fmt.Errorf("object %d (%s): %w", i, l.ObjectNames[i], err)
		}
	}
	if i, j, found := geometry.FindOverlap(rects); found {
		return runerrors.Geometry("layout.validate", "%s %s overlaps %s %s",
			l.ObjectNames[i], rects[i], l.ObjectNames[j], rects[j])
	}
	return nil
}

// Save writes the layout as JSON, creating the parent directory. The file is
// replaced atomically, so readers never see a partial layout.
func Save(path string, l *Layout) error {
	const op = "layout.save"
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return runerrors.IO(op, err, "encode layout")
	}
	err = utils.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return runerrors.IO(op, err, "write %s", path)
	}
	return nil
}

// Load reads a layout file and checks its structure.
func Load(path string) (*Layout, error) {
	const op = "layout.load"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, runerrors.IO(op, err, "read %s", path)
	}

	var wire wireLayout
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, runerrors.IO(op, err, "decode %s", path)
	}
	if wire.NumObjects == nil {
		return nil, runerrors.Wrap(runerrors.KindIO, op, ErrInvalidLayout, "%s has no num_objects", path)
	}

	l, err := New(wire.ObjectNames, *wire.NumObjects, wire.PositionList)
	if err != nil {
		// Structural problems in a persisted file are geometry errors, not negotiation ones.
		if runerrors.KindOf(err) == runerrors.KindNegotiation {
			return nil, runerrors.Wrap(runerrors.KindGeometry, op, err, "%s", path)
		}
		return nil, err
	}
	return l, nil
}
