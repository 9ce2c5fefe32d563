package assets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/fitroom/types"
)

func testEntryIndex(t *testing.T, files map[string][]byte) *EntryIndex {
	t.Helper()
	idx, err := ExtractEntries(buildZip(t, files))
	require.NoError(t, err)
	return idx
}

func TestPack_MultiFileScene(t *testing.T) {
	sceneJSON := []byte(`{
		"asset": {"version": "2.0"},
		"buffers": [{"uri": "geometry.bin", "byteLength": 4}],
		"images": [{"uri": "textures/diffuse.png"}]
	}`)
	entries := testEntryIndex(t, map[string][]byte{
		"geometry.bin":         {1, 2, 3, 4},
		"textures/diffuse.png": {9, 8, 7},
	})

	glb, err := Pack(sceneJSON, entries)
	require.NoError(t, err)
	require.True(t, IsGLB(glb))

	packedJSON, _, err := DecodeGLB(glb)
	require.NoError(t, err)

	scene, err := ParseScene(packedJSON)
	require.NoError(t, err)

	// 打包后数量不变、全部内嵌
	require.Len(t, scene.Buffers, 1)
	require.Len(t, scene.Images, 1)
	assert.Empty(t, scene.ExternalRefs())

	assert.True(t, strings.HasPrefix(scene.Buffers[0].URI, "data:application/octet-stream;base64,"))
	assert.True(t, strings.HasPrefix(scene.Images[0].URI, "data:image/png;base64,"))
	assert.Equal(t, 4, scene.Buffers[0].ByteLength)

	raw, err := base64.StdEncoding.DecodeString(strings.SplitN(scene.Buffers[0].URI, ",", 2)[1])
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)
}

func TestPack_BasenameFallback(t *testing.T) {
	// 场景引用的相对路径与归档内布局不一致，按 basename 兜底
	sceneJSON := []byte(`{
		"asset": {"version": "2.0"},
		"images": [{"uri": "diffuse.png"}]
	}`)
	entries := testEntryIndex(t, map[string][]byte{
		"pkg/textures/diffuse.png": {1, 1},
	})

	glb, err := Pack(sceneJSON, entries)
	require.NoError(t, err)

	packedJSON, _, err := DecodeGLB(glb)
	require.NoError(t, err)
	scene, err := ParseScene(packedJSON)
	require.NoError(t, err)
	assert.True(t, IsDataURI(scene.Images[0].URI))
}

func TestPack_EscapedURI(t *testing.T) {
	sceneJSON := []byte(`{
		"asset": {"version": "2.0"},
		"images": [{"uri": "my%20texture.png"}]
	}`)
	entries := testEntryIndex(t, map[string][]byte{
		"my texture.png": {5},
	})

	glb, err := Pack(sceneJSON, entries)
	require.NoError(t, err)
	assert.True(t, IsGLB(glb))
}

func TestPack_UnresolvedReferenceFails(t *testing.T) {
	sceneJSON := []byte(`{
		"asset": {"version": "2.0"},
		"buffers": [{"uri": "missing.bin", "byteLength": 4}]
	}`)

	_, err := Pack(sceneJSON, testEntryIndex(t, map[string][]byte{"other.png": {1}}))
	require.Error(t, err)
	assert.Equal(t, types.ErrPackingFailed, types.GetErrorCode(err))
}

func TestPack_AlreadyEmbedded(t *testing.T) {
	sceneJSON := []byte(`{
		"asset": {"version": "2.0"},
		"buffers": [{"uri": "data:application/octet-stream;base64,AAAA", "byteLength": 3}]
	}`)

	glb, err := Pack(sceneJSON, nil)
	require.NoError(t, err)
	assert.True(t, IsGLB(glb))
}

func TestPack_GLBIdempotence(t *testing.T) {
	sceneJSON := []byte(`{
		"asset": {"version": "2.0"},
		"images": [{"uri": "diffuse.png"}]
	}`)
	entries := testEntryIndex(t, map[string][]byte{"diffuse.png": {1, 2}})

	first, err := Pack(sceneJSON, entries)
	require.NoError(t, err)

	// 对已自包含的 GLB 再打包必须原样返回
	second, err := Pack(first, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// 幂等律的性质测试：任意内容的场景打包一次得到 GLB 后，
// 再次打包永远返回相同字节。
func TestPack_IdempotenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bufData := rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(t, "bufData")
		imgData := rapid.SliceOfN(rapid.Byte(), 1, 256).Draw(t, "imgData")

		entries := &EntryIndex{
			byPath: map[string][]byte{
				"geometry.bin": bufData,
				"texture.png":  imgData,
			},
			byBase: map[string][]byte{
				"geometry.bin": bufData,
				"texture.png":  imgData,
			},
		}

		sceneJSON := []byte(`{
			"asset": {"version": "2.0"},
			"buffers": [{"uri": "geometry.bin", "byteLength": 0}],
			"images": [{"uri": "texture.png"}]
		}`)

		packed, err := Pack(sceneJSON, entries)
		if err != nil {
			t.Fatalf("pack failed: %v", err)
		}

		repacked, err := Pack(packed, nil)
		if err != nil {
			t.Fatalf("repack failed: %v", err)
		}
		if string(packed) != string(repacked) {
			t.Fatalf("pack is not idempotent")
		}
	})
}
