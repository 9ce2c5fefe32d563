package assets

import (
	"encoding/base64"
	"net/url"

	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 🎁 场景打包器
// =============================================================================
// 把多文件场景描述 + 资源条目打包成单个自包含 GLB，全程在内存中
// 完成，不落临时文件。

// Pack 将场景描述与资源索引打包为自包含 GLB。
//
// 已经是 GLB 的输入原样返回（幂等律）。每个未内嵌的 buffer/image
// 引用先按完整路径、再按 basename 在 entries 中查找，命中后替换为
// 携带推断媒体类型的 base64 data URI。任何引用解析失败则打包失败，
// 由调用方回退到非打包表示。
func Pack(sceneData []byte, entries *EntryIndex) ([]byte, error) {
	if IsGLB(sceneData) {
		return sceneData, nil
	}

	scene, err := ParseScene(sceneData)
	if err != nil {
		return nil, types.NewError(types.ErrPackingFailed, "scene description is not valid json").WithCause(err)
	}

	for i := range scene.Buffers {
		if scene.Buffers[i].URI == "" || IsDataURI(scene.Buffers[i].URI) {
			continue
		}
		data, ok := lookupEntry(entries, scene.Buffers[i].URI)
		if !ok {
			return nil, types.NewError(types.ErrPackingFailed,
				"unresolved buffer reference: "+scene.Buffers[i].URI)
		}
		scene.Buffers[i].URI = encodeDataURI(scene.Buffers[i].URI, data)
		scene.Buffers[i].ByteLength = len(data)
	}

	for i := range scene.Images {
		if scene.Images[i].URI == "" || IsDataURI(scene.Images[i].URI) {
			continue
		}
		data, ok := lookupEntry(entries, scene.Images[i].URI)
		if !ok {
			return nil, types.NewError(types.ErrPackingFailed,
				"unresolved image reference: "+scene.Images[i].URI)
		}
		scene.Images[i].URI = encodeDataURI(scene.Images[i].URI, data)
	}

	packed, err := scene.Encode()
	if err != nil {
		return nil, types.NewError(types.ErrPackingFailed, "failed to encode packed scene").WithCause(err)
	}

	// 所有资源已内嵌为 data URI，GLB 只需 JSON chunk。
	return EncodeGLB(packed, nil)
}

// lookupEntry 按完整路径、再按 basename 查找引用的资源。
// 场景文件里的 URI 可能带有百分号转义。
func lookupEntry(entries *EntryIndex, uri string) ([]byte, bool) {
	if entries == nil {
		return nil, false
	}

	candidates := []string{uri}
	if decoded, err := url.PathUnescape(uri); err == nil && decoded != uri {
		candidates = append(candidates, decoded)
	}

	for _, c := range candidates {
		if data, ok := entries.Get(c); ok {
			return data, true
		}
	}
	for _, c := range candidates {
		if data, ok := entries.GetByBasename(c); ok {
			return data, true
		}
	}
	return nil, false
}

func encodeDataURI(refPath string, data []byte) string {
	return "data:" + MediaTypeForPath(refPath) + ";base64," +
		base64.StdEncoding.EncodeToString(data)
}
