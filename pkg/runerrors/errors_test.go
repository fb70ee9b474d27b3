package runerrors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := Geometry("rect.validate", "width %d is negative", -3)
	assert.Equal(t, "geometry error (rect.validate): width -3 is negative", err.Error())

	wrapped := Wrap(KindIO, "layout.save", os.ErrPermission, "write %s", "masks.json")
	assert.Contains(t, wrapped.Error(), "io error (layout.save): write masks.json")
	assert.ErrorIs(t, wrapped, os.ErrPermission)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindIO, "op", nil, "ignored"))
	assert.NoError(t, IO("op", nil, "ignored"))
}

func TestIsWalksChain(t *testing.T) {
	inner := Geometry("rect.validate", "outside canvas")
	outer := Wrap(KindNegotiation, "persist", inner, "tool rejected layout")
	err := fmt.Errorf("run: %w", outer)

	assert.True(t, Is(err, KindNegotiation))
	assert.True(t, Is(err, KindGeometry))
	assert.False(t, Is(err, KindIO))
	assert.Equal(t, KindNegotiation, KindOf(err))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", KindOf(nil).String())
}
