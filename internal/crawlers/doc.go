// Package crawlers 提供队列文件和HTTP抓取两个基础组件
//
// # 概述
//
// crawlers包是监视循环的两个叶子依赖: 基于文件的URL队列和基于Colly的抓取器。
// 调度策略(间隔、取消、失败重排)由core包负责。
//
// # 核心组件
//
// ## URLQueue
//
// 把一个文本文件当作持久化队列, 每行一个URL。取出(Drain)时在同一个临界区内
// 读取并清空文件, 临界区由进程内互斥锁和 <queue>.lock 上的flock共同保护。
//
//	queue := NewURLQueue("urls.txt")
//	entries, err := queue.Drain()
//	...
//	err = queue.Append(leftovers)
//
// 失败的URL以带标记的形式写回:
//
//	https://example.com #failed attempts=2 last=2026-10-19T08:01:00Z
//
// 取出时会解析并剥离标记, 重新入队时覆盖标记, 同一URL始终只占一行。
//
// ## StaticFetcher
//
// 同步的Colly抓取器, 每次Fetch发起一个GET请求:
//   - TLS证书校验开启
//   - 跟随重定向(默认最多10次)
//   - 总超时默认5秒
//   - 支持gzip/deflate/brotli解压, 非UTF-8响应转码后再截取日志片段
//
//	fetcher := NewStaticFetcher(models.DefaultFetchConfig(), headerProvider)
//	result := fetcher.Fetch(ctx, "https://example.com")
//
// ## CheckQueueDisk
//
// 使用gopsutil检查队列目录所在磁盘的剩余空间, 启动时和status命令中使用。
package crawlers
