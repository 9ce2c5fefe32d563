package assets

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// 🧱 glTF 场景模型与 GLB 编解码
// =============================================================================
// GLB 布局：12 字节文件头（magic/version/length）+ 若干 chunk，
// 每个 chunk 为 8 字节头（length/type）+ 4 字节对齐的数据。
// 参考: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html

const (
	glbMagicWord  = 0x46546C67 // "glTF" little-endian
	glbVersion    = 2
	glbChunkJSON  = 0x4E4F534A // "JSON"
	glbChunkBIN   = 0x004E4942 // "BIN\0"
	glbHeaderSize = 12
	glbChunkHead  = 8
)

// BufferRef 场景中对外部几何缓冲的引用
type BufferRef struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
}

// ImageRef 场景中对纹理图片的引用
type ImageRef struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
}

// Scene 多文件场景描述的可变视图。只有 buffers 与 images 被解析成
// 结构体（解析/打包只改这两类引用），其余键原样保留，编码时不丢失。
type Scene struct {
	Buffers []BufferRef
	Images  []ImageRef

	rest map[string]json.RawMessage
}

// ParseScene 解析场景描述 JSON
func ParseScene(data []byte) (*Scene, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse scene json: %w", err)
	}

	s := &Scene{rest: raw}

	if b, ok := raw["buffers"]; ok {
		if err := json.Unmarshal(b, &s.Buffers); err != nil {
			return nil, fmt.Errorf("parse scene buffers: %w", err)
		}
	}
	if img, ok := raw["images"]; ok {
		if err := json.Unmarshal(img, &s.Images); err != nil {
			return nil, fmt.Errorf("parse scene images: %w", err)
		}
	}

	return s, nil
}

// Encode 序列化场景描述，buffers/images 的修改写回，其余键不变。
func (s *Scene) Encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.rest))
	for k, v := range s.rest {
		out[k] = v
	}

	if len(s.Buffers) > 0 {
		b, err := json.Marshal(s.Buffers)
		if err != nil {
			return nil, fmt.Errorf("encode scene buffers: %w", err)
		}
		out["buffers"] = b
	}
	if len(s.Images) > 0 {
		img, err := json.Marshal(s.Images)
		if err != nil {
			return nil, fmt.Errorf("encode scene images: %w", err)
		}
		out["images"] = img
	}

	return json.Marshal(out)
}

// ExternalRefs 返回全部未内嵌的外部引用 URI（buffers 在前）
func (s *Scene) ExternalRefs() []string {
	var refs []string
	for _, b := range s.Buffers {
		if b.URI != "" && !IsDataURI(b.URI) {
			refs = append(refs, b.URI)
		}
	}
	for _, img := range s.Images {
		if img.URI != "" && !IsDataURI(img.URI) {
			refs = append(refs, img.URI)
		}
	}
	return refs
}

// IsDataURI 判断 URI 是否为内嵌 data URI
func IsDataURI(uri string) bool {
	return strings.HasPrefix(uri, "data:")
}

// =============================================================================
// GLB 编解码
// =============================================================================

// IsGLB 判断字节是否为 GLB 文件
func IsGLB(data []byte) bool {
	return len(data) >= glbHeaderSize &&
		binary.LittleEndian.Uint32(data[0:4]) == glbMagicWord
}

// EncodeGLB 将场景 JSON 与可选的二进制块打包为单个 GLB。
// JSON chunk 以空格补齐到 4 字节，BIN chunk 以零字节补齐。
func EncodeGLB(sceneJSON, bin []byte) ([]byte, error) {
	if len(sceneJSON) == 0 {
		return nil, fmt.Errorf("encode glb: empty scene json")
	}

	jsonChunk := pad4(sceneJSON, ' ')
	total := glbHeaderSize + glbChunkHead + len(jsonChunk)

	var binChunk []byte
	if len(bin) > 0 {
		binChunk = pad4(bin, 0)
		total += glbChunkHead + len(binChunk)
	}

	buf := bytes.NewBuffer(make([]byte, 0, total))
	writeUint32(buf, glbMagicWord)
	writeUint32(buf, glbVersion)
	writeUint32(buf, uint32(total))

	writeUint32(buf, uint32(len(jsonChunk)))
	writeUint32(buf, glbChunkJSON)
	buf.Write(jsonChunk)

	if binChunk != nil {
		writeUint32(buf, uint32(len(binChunk)))
		writeUint32(buf, glbChunkBIN)
		buf.Write(binChunk)
	}

	return buf.Bytes(), nil
}

// DecodeGLB 拆出 GLB 的 JSON chunk 与可选的 BIN chunk
func DecodeGLB(data []byte) (sceneJSON, bin []byte, err error) {
	if len(data) < glbHeaderSize {
		return nil, nil, fmt.Errorf("decode glb: truncated header")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != glbMagicWord {
		return nil, nil, fmt.Errorf("decode glb: bad magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != glbVersion {
		return nil, nil, fmt.Errorf("decode glb: unsupported version %d", v)
	}
	declared := binary.LittleEndian.Uint32(data[8:12])
	if int(declared) > len(data) {
		return nil, nil, fmt.Errorf("decode glb: declared length %d exceeds payload %d", declared, len(data))
	}

	offset := glbHeaderSize
	for offset+glbChunkHead <= int(declared) {
		length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		chunkType := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += glbChunkHead

		if offset+length > len(data) {
			return nil, nil, fmt.Errorf("decode glb: chunk overruns payload")
		}

		switch chunkType {
		case glbChunkJSON:
			sceneJSON = data[offset : offset+length]
		case glbChunkBIN:
			bin = data[offset : offset+length]
		}
		offset += length
	}

	if sceneJSON == nil {
		return nil, nil, fmt.Errorf("decode glb: missing JSON chunk")
	}
	return sceneJSON, bin, nil
}

func pad4(data []byte, fill byte) []byte {
	rem := len(data) % 4
	if rem == 0 {
		return data
	}
	padded := make([]byte, len(data)+4-rem)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = fill
	}
	return padded
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}
