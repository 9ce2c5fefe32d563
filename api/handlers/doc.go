// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

// 包 handlers 实现 FitRoom 的 HTTP 端点：资产服务器（缓存读取、
// 按来源解析、白名单代理）、衣橱 CRUD、2D 试穿与健康检查。
// 所有响应走统一的 Response 信封，错误按 types.ErrorCode 映射
// HTTP 状态码。
package handlers
