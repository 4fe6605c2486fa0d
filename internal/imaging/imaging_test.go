package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, G: 120, B: 90, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestPreprocessDownscalesLandscape(t *testing.T) {
	out, err := Preprocess(encodePNG(t, 2048, 1024))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.MimeType)
	assert.Equal(t, 1024, out.Width)
	assert.Equal(t, 512, out.Height)

	raw, err := base64.StdEncoding.DecodeString(out.Base64)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1024, cfg.Width)
}

func TestPreprocessDownscalesPortrait(t *testing.T) {
	out, err := Preprocess(encodePNG(t, 600, 1800))
	require.NoError(t, err)
	assert.Equal(t, 341, out.Width)
	assert.Equal(t, 1024, out.Height)
}

func TestPreprocessKeepsSmallImages(t *testing.T) {
	out, err := Preprocess("data:image/png;base64," + encodePNG(t, 320, 200))
	require.NoError(t, err)
	assert.Equal(t, 320, out.Width)
	assert.Equal(t, 200, out.Height)
}

func TestPreprocessErrors(t *testing.T) {
	_, err := Preprocess("  ")
	require.ErrorIs(t, err, ErrEmptyImage)

	_, err = Preprocess("!!!not-base64!!!")
	require.ErrorIs(t, err, ErrDecode)

	_, err = Preprocess(base64.StdEncoding.EncodeToString([]byte("plain text, not an image")))
	require.ErrorIs(t, err, ErrDecode)
}
