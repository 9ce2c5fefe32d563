// Copyright (c) FitRoom Authors.
// Licensed under the MIT License.

/*
包 marketplace 封装对 3D 资产市场的访问。

全部 API 调用经过单工作协程的限速 FIFO 队列（请求间隔 1000/N ms，
429 按 1,2,4,8,16 倍基准退避重试），模型包本体从返回的下载地址
直接抓取。Client 同时实现 store.Fetcher，是解析服务的默认抓取器。
*/
package marketplace
