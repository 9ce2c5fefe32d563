// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 database 提供数据库连接池管理与事务辅助能力。

# 概述

本包通过 PoolManager 包装 GORM 实例，统一配置底层 sql.DB 连接池
参数，并提供健康检查循环与事务执行辅助。衣橱存储（用户、照片、
服装、试穿会话）的所有数据库访问都经过它；支持 SQLite、PostgreSQL
与 MySQL 三种驱动。

# 主要能力

  - 连接池配置：最大打开/空闲连接数、连接生命周期与空闲时间。
  - 健康检查：后台循环定期 Ping 并输出连接池统计。
  - 事务管理：WithTransaction 单次事务执行，
    WithTransactionRetry 针对死锁、序列化失败、SQLite 写锁等
    可重试错误做指数退避重试。
*/
package database
