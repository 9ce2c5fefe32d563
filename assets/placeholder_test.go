package assets

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderPNG(t *testing.T) {
	data := PlaceholderPNG()
	require.NotEmpty(t, data)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 1, bounds.Dx())
	assert.Equal(t, 1, bounds.Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a, "占位像素必须全透明")

	// 重复调用返回同一份编码结果
	assert.Same(t, &data[0], &PlaceholderPNG()[0])
}

func TestPlaceholderBuffer(t *testing.T) {
	data := PlaceholderBuffer()
	assert.Len(t, data, 36)
}
