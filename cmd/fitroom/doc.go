// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
Package main 提供 FitRoom 服务端程序入口。

# 概述

cmd/fitroom 是 FitRoom 虚拟试衣后端的可执行入口，提供资产服务器、
衣橱 API、数据库迁移、健康检查和版本查询等子命令。程序支持 YAML
配置文件加载、结构化日志（zap）与独立端口的 Prometheus 指标采集。

# 核心类型

  - Server        — 主服务器，管理资产/API、Metrics 双端口及优雅关闭
  - Middleware    — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、migrate（衣橱库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、CORS、RateLimiter（基于 IP）、JWTAuth（Bearer Token）
  - 资产路由：/assets/{asset}/{path...} 分层缓存读取、
    /api/v1/assets/resolve 按来源解析、/api/v1/proxy 白名单代理
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 市场队列排空 → 关闭 HTTP → 关闭 Metrics
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
