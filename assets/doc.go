// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 assets 实现 3D 资产的格式矫正层：把从市场下载的任意载荷
（归档、多文件场景、二进制场景）尽力转换为单个自包含的 GLB。

# 组成

  - Classify：统一的载荷分类（魔数 → URL 扩展名 → content-type），
    所有调用点共用，结果为 archive/binary-scene/text-scene/unknown。
  - ExtractEntries：ZIP 归档的内存提取与条目索引。
  - Pack：多文件场景 + 资源条目 → 自包含 GLB，外部引用内嵌为
    base64 data URI；对已是 GLB 的输入幂等。
  - Resolver：对落盘场景的引用做阶梯式查找（原路径 → 资产树 →
    共享池 → LCS 模糊匹配 → 占位合成），保证解析后无悬空引用。
  - PlaceholderPNG/PlaceholderBuffer：最小合法占位资源。
*/
package assets
