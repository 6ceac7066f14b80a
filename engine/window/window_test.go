package window

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampDimension(t *testing.T) {
	assert.Equal(t, 320, clampDimension(100, 320, 7680))
	assert.Equal(t, 7680, clampDimension(9000, 320, 7680))
	assert.Equal(t, 1280, clampDimension(1280, 320, 7680))
	assert.Equal(t, 9000, clampDimension(9000, 0, 0))
}

func TestTitleIsTakenOnce(t *testing.T) {
	w := &engineWindow{mu: new(sync.Mutex), title: "a"}
	_, ok := w.takeTitle()
	assert.False(t, ok)

	w.SetTitle("b")
	w.SetTitle("c")
	title, ok := w.takeTitle()
	assert.True(t, ok)
	assert.Equal(t, "c", title)
	assert.Equal(t, "c", w.title)

	_, ok = w.takeTitle()
	assert.False(t, ok)
}
