package assets

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
)

// =============================================================================
// 🩹 占位资源合成
// =============================================================================
// 当场景引用的纹理或几何缓冲彻底找不到时，用最小的合法替身顶上，
// 牺牲视觉保真度换取场景可加载。

var (
	placeholderPNGOnce sync.Once
	placeholderPNG     []byte
)

// PlaceholderPNG 返回 1×1 全透明 PNG 的字节。结果只编码一次，
// 调用方不得修改返回的切片。
func PlaceholderPNG() []byte {
	placeholderPNGOnce.Do(func() {
		img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		img.SetNRGBA(0, 0, color.NRGBA{})

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			// 固定输入的内存编码不会失败
			panic("encode placeholder png: " + err.Error())
		}
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}

// PlaceholderBuffer 返回一个最小的几何缓冲：单个退化三角形的
// 三个 float32 顶点坐标（36 字节，小端）。足以让加载器按
// byteLength 读取而不报错。
func PlaceholderBuffer() []byte {
	verts := [9]float32{
		0, 0, 0,
		0.001, 0, 0,
		0, 0.001, 0,
	}
	buf := make([]byte, 0, len(verts)*4)
	var tmp [4]byte
	for _, v := range verts {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}
