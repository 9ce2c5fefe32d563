// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
Package types 提供 FitRoom 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 assets、store、
marketplace、wardrobe、api 等上层模块提供统一的类型契约。跨包共享的
错误码与上下文辅助函数均定义于此，以避免循环依赖。

# 错误处理

所有对外暴露的失败都以 [Error] 表示：错误码 + 可读信息 + 可选原因链。
资产解析相关的错误码（THROTTLED、ARCHIVE_CORRUPT、HOST_NOT_ALLOWED 等）
与 HTTP 状态码的映射在 api/handlers 中完成。
*/
package types
