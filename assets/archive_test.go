package assets

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/fitroom/types"
)

// buildZip 在内存中构造测试归档
func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractEntries(t *testing.T) {
	payload := buildZip(t, map[string][]byte{
		"scene.gltf":           []byte(`{"asset":{"version":"2.0"}}`),
		"textures/diffuse.png": {1, 2, 3},
		"geometry.bin":         {4, 5, 6, 7},
	})

	idx, err := ExtractEntries(payload)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	data, ok := idx.Get("textures/diffuse.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	// basename 查找
	data, ok = idx.GetByBasename("diffuse.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)

	scenePath, ok := idx.FindByExt(".gltf")
	require.True(t, ok)
	assert.Equal(t, "scene.gltf", scenePath)

	_, ok = idx.FindByExt(".glb")
	assert.False(t, ok)
}

func TestExtractEntries_SkipsMetadata(t *testing.T) {
	payload := buildZip(t, map[string][]byte{
		"model/scene.gltf":            []byte("{}"),
		"__MACOSX/model/._scene.gltf": {0},
		"model/.DS_Store":             {0},
	})

	idx, err := ExtractEntries(payload)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, "model/scene.gltf", idx.Entries()[0].Path)
}

func TestExtractEntries_Corrupt(t *testing.T) {
	_, err := ExtractEntries([]byte("PK\x03\x04 definitely not a zip"))
	require.Error(t, err)
	assert.Equal(t, types.ErrArchiveCorrupt, types.GetErrorCode(err))
}

func TestNormalizeEntryPath(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"model/scene.gltf", "model/scene.gltf"},
		{"./scene.gltf", "scene.gltf"},
		{"/abs/scene.gltf", "abs/scene.gltf"},
		{"a\\b\\c.bin", "a/b/c.bin"},
		{"../escape.bin", ""},
		{".", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizeEntryPath(tt.in), tt.in)
	}
}
