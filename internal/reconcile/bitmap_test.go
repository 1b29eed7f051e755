package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmapSetClear(t *testing.T) {
	b := newBitmap(1000, 2000)

	b.set(1000)
	b.set(1500)
	b.set(2000)
	assert.True(t, b.test(1000))
	assert.True(t, b.test(1500))
	assert.True(t, b.test(2000))
	assert.False(t, b.test(1001))

	b.clear(1500)
	assert.False(t, b.test(1500))

	var got []int64
	b.each(func(id int64) { got = append(got, id) })
	assert.Equal(t, []int64{1000, 2000}, got)
}

func TestBitmapOutOfRange(t *testing.T) {
	b := newBitmap(100, 163)

	// Out-of-range ids are ignored, not grown into.
	b.set(50)
	b.set(100000)
	assert.False(t, b.test(50))
	assert.False(t, b.test(100000))

	count := 0
	b.each(func(int64) { count++ })
	assert.Equal(t, 0, count)
}

func TestBitmapEmptyRange(t *testing.T) {
	b := newBitmap(0, 0)
	b.set(0)
	assert.True(t, b.test(0))
}

func TestBitmapCap(t *testing.T) {
	b := newBitmap(0, int64(maxEntries)*4)
	assert.Len(t, b.words, maxEntries/64)
	b.set(int64(maxEntries) * 2)
	assert.False(t, b.test(int64(maxEntries)*2))
}
