// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。FitRoom 进程内同时运行两个 Manager 实例：
对外的资产/API 服务器与独立端口上的 Prometheus metrics 服务器，
通过 Config.Name 在日志中区分。

# 主要能力

  - 非阻塞启动：Start/StartTLS 在后台 goroutine 中运行服务，
    主线程不阻塞。
  - 优雅关闭：Shutdown 在配置的超时内排空在途的资产下载请求。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM，收到信号后
    自动触发优雅关闭流程。
  - 错误传播：Errors() 返回异步错误通道，供调用方监控服务异常。
  - 状态查询：IsRunning/Addr/ActualAddr 提供运行状态与监听地址，
    ActualAddr 在随机端口（":0"）场景下返回真实端口。
*/
package server
