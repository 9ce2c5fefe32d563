// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的短期缓存能力。

# 概述

FitRoom 的资产文件缓存在本地磁盘上（见 store 包），本包覆盖的是
另一类数据：市场元数据查询结果与已完成的解析结果摘要。这类数据
体积小、可重建、有明确的新鲜度窗口，适合放在 Redis 并设置 TTL。
Redis 为可选依赖，未启用时上层直接回源。

# 主要能力

  - 字符串与 JSON 读写：Get/Set/GetJSON/SetJSON，未命中返回
    ErrCacheMiss 哨兵错误。
  - 键命名：MetadataKey/ResolutionKey 统一加 "fitroom:" 前缀，
    避免与共享实例上的其他服务冲突。
  - 连接管理：连接池、启动时 Ping 校验、后台健康检查循环。
*/
package cache
