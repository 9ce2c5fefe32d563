package assets

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScene_RoundTripPreservesUnknownKeys(t *testing.T) {
	src := []byte(`{
		"asset": {"version": "2.0", "generator": "fitroom-test"},
		"scenes": [{"nodes": [0]}],
		"nodes": [{"mesh": 0}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
		"buffers": [{"uri": "geometry.bin", "byteLength": 36}],
		"images": [{"uri": "texture.png"}]
	}`)

	scene, err := ParseScene(src)
	require.NoError(t, err)
	require.Len(t, scene.Buffers, 1)
	require.Len(t, scene.Images, 1)
	assert.Equal(t, "geometry.bin", scene.Buffers[0].URI)

	scene.Buffers[0].URI = "data:application/octet-stream;base64,AAAA"

	out, err := scene.Encode()
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))

	// buffers/images 之外的键原样保留
	for _, key := range []string{"asset", "scenes", "nodes", "meshes", "buffers", "images"} {
		assert.Contains(t, decoded, key)
	}

	reparsed, err := ParseScene(out)
	require.NoError(t, err)
	assert.Equal(t, "data:application/octet-stream;base64,AAAA", reparsed.Buffers[0].URI)
}

func TestScene_ExternalRefs(t *testing.T) {
	scene, err := ParseScene([]byte(`{
		"asset": {"version": "2.0"},
		"buffers": [
			{"uri": "a.bin", "byteLength": 4},
			{"uri": "data:application/octet-stream;base64,AAAA", "byteLength": 3}
		],
		"images": [
			{"uri": "t.png"},
			{"bufferView": 0, "mimeType": "image/png"}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.bin", "t.png"}, scene.ExternalRefs())
}

func TestScene_ExternalRefs_Empty(t *testing.T) {
	scene, err := ParseScene([]byte(`{"asset": {"version": "2.0"}}`))
	require.NoError(t, err)
	assert.Empty(t, scene.ExternalRefs())
}

func TestParseScene_Invalid(t *testing.T) {
	_, err := ParseScene([]byte("not json"))
	assert.Error(t, err)
}

func TestEncodeDecodeGLB(t *testing.T) {
	sceneJSON := []byte(`{"asset":{"version":"2.0"}}`)
	bin := []byte{1, 2, 3, 4, 5}

	glb, err := EncodeGLB(sceneJSON, bin)
	require.NoError(t, err)
	require.True(t, IsGLB(glb))

	// 总长度 4 字节对齐
	assert.Zero(t, len(glb)%4)

	gotJSON, gotBin, err := DecodeGLB(glb)
	require.NoError(t, err)

	// JSON chunk 以空格补齐，BIN chunk 以零字节补齐
	assert.JSONEq(t, string(sceneJSON), string(gotJSON))
	assert.Equal(t, bin, gotBin[:len(bin)])
	for _, b := range gotBin[len(bin):] {
		assert.Zero(t, b)
	}
}

func TestEncodeGLB_JSONOnly(t *testing.T) {
	sceneJSON := []byte(`{"asset":{"version":"2.0"}}`)

	glb, err := EncodeGLB(sceneJSON, nil)
	require.NoError(t, err)

	gotJSON, gotBin, err := DecodeGLB(glb)
	require.NoError(t, err)
	assert.JSONEq(t, string(sceneJSON), string(gotJSON))
	assert.Nil(t, gotBin)
}

func TestEncodeGLB_Empty(t *testing.T) {
	_, err := EncodeGLB(nil, nil)
	assert.Error(t, err)
}

func TestDecodeGLB_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte{0x67, 0x6C}},
		{"bad magic", make([]byte, 16)},
		{"bad version", append([]byte{0x67, 0x6C, 0x54, 0x46, 9, 0, 0, 0}, make([]byte, 8)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeGLB(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestIsGLB(t *testing.T) {
	glb, err := EncodeGLB([]byte(`{"asset":{"version":"2.0"}}`), nil)
	require.NoError(t, err)

	assert.True(t, IsGLB(glb))
	assert.False(t, IsGLB([]byte(`{"asset":{}}`)))
	assert.False(t, IsGLB(nil))
}

func TestIsDataURI(t *testing.T) {
	assert.True(t, IsDataURI("data:image/png;base64,AAAA"))
	assert.False(t, IsDataURI("texture.png"))
	assert.False(t, IsDataURI(""))
}
