// Package config 提供 FitRoom 的集中式配置：默认值、YAML 文件与
// FITROOM_ 前缀环境变量的三层覆盖，以及启动前的配置验证。
package config
