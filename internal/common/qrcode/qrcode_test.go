package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkout = "https://checkout.xendit.co/web/inv_123"

func TestPNG(t *testing.T) {
	g := NewGenerator(WithSize(128))

	data, err := g.PNG(checkout)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestPNG_InvalidURL(t *testing.T) {
	g := NewGenerator()
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative/path"} {
		_, err := g.PNG(raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestDataURL(t *testing.T) {
	g := NewGenerator()

	v, err := g.DataURL(checkout)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(v, dataURLPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, dataURLPrefix))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	again, err := g.DataURL(checkout)
	require.NoError(t, err)
	assert.Equal(t, v, again)
	assert.Equal(t, 1, g.Cached())
}

func TestDataURL_EvictsOldest(t *testing.T) {
	g := NewGenerator(WithCapacity(2))

	for _, id := range []string{"a", "b", "c"} {
		_, err := g.DataURL(checkout + id)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, g.Cached())

	_, ok := g.lookup(checkout + "a")
	assert.False(t, ok)
	_, ok = g.lookup(checkout + "c")
	assert.True(t, ok)
}

func TestDataURL_NoCache(t *testing.T) {
	g := NewGenerator(WithCapacity(0))

	_, err := g.DataURL(checkout)
	require.NoError(t, err)
	assert.Zero(t, g.Cached())
}
