// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、资产解析、市场队列、缓存与数据库五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 资产解析指标：解析总数与耗时（按 method/outcome 分组）、
    占位符替换计数（texture/buffer）、打包后 GLB 场景大小分布。
  - 市场队列指标：队列深度 Gauge、排队等待时间、上游请求计数
    （metadata/download × success/throttled/error）、429 重试计数。
  - 缓存指标：命中与未命中计数，按层级（memory/disk/pool/scan/redis）
    分组。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram，
    按 database/operation 分组。
*/
package metrics
