// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

// 包 wardrobe 提供衣橱域的实体模型与持久化：用户、身材档案、照片、
// 身材估算、3D 形象、服装、试穿会话与埋点事件。结构与
// internal/migration 内嵌的 wardrobe_schema 对应。
package wardrobe
