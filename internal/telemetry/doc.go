// Package telemetry 初始化 OpenTelemetry SDK：OTLP gRPC 导出器、
// 按比例采样的 TracerProvider 与周期性上报的 MeterProvider。
// 资产解析链路（市场下载、归档解包、磁盘写入）以 I/O 为主，
// 因此按 sample_rate 采样而非全量记录。遥测禁用时全部为 noop，
// 不连接任何外部服务。
package telemetry
