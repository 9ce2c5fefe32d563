// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 store 实现资产的本地缓存与解析服务。

磁盘布局：缓存根目录下每个来源一个净化命名的资产目录，外加一个
共享资源池目录（按 basename，后写覆盖）。读路径分层：进程内内存
缓存 → 资产目录精确路径 → 共享池 → 缓存根下限深递归搜索；全部
未命中返回列出搜索位置的结构化响应。

Service 把来源标识解析为自包含场景：抓取 → 分类 → 按类固化
（直接落盘 / 归档提取 / 内存打包 / 依赖解析），同一来源的并发
请求经 singleflight 合并为一次解析。
*/
package store
