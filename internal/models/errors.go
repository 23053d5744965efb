package models

import (
	"errors"
	"fmt"
)

// FetchErrorKind 抓取错误分类
type FetchErrorKind string

const (
	FetchErrTimeout    FetchErrorKind = "timeout"     // 请求超时
	FetchErrNetwork    FetchErrorKind = "network"     // 连接失败等网络错误
	FetchErrTLS        FetchErrorKind = "tls"         // 证书校验失败
	FetchErrHTTPStatus FetchErrorKind = "http_status" // 非2xx状态码
	FetchErrInvalidURL FetchErrorKind = "invalid_url" // URL格式无效
	FetchErrBody       FetchErrorKind = "body"        // 响应体读取/解码失败
	FetchErrRobots     FetchErrorKind = "robots"      // 被robots.txt禁止
	FetchErrRequest    FetchErrorKind = "request"     // 请求构造失败(如头部配置无效)
	FetchErrCanceled   FetchErrorKind = "canceled"    // 监视器被取消
)

// FetchError 抓取失败(传输层错误)
// 在本地恢复: URL带失败标记重新入队,循环继续
type FetchError struct {
	// URL 抓取的URL
	URL string

	// Kind 错误分类
	Kind FetchErrorKind

	// StatusCode HTTP状态码(仅Kind为http_status时有效)
	StatusCode int

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.Kind == FetchErrHTTPStatus {
		return fmt.Sprintf("抓取失败 [%s]: HTTP %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("抓取失败 [%s]: %v", e.Kind, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// QueueFileError 队列文件读写失败
// 当前tick中止,下一个tick重试,不会导致进程退出
type QueueFileError struct {
	// Op 失败的操作 (create, lock, read, truncate, append, remove)
	Op string

	// Path 队列文件路径
	Path string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *QueueFileError) Error() string {
	return fmt.Sprintf("队列文件%s失败 [%s]: %v", e.Op, e.Path, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *QueueFileError) Unwrap() error {
	return e.Cause
}

// ConfigError 配置错误
// 启动时返回,监视器拒绝启动
type ConfigError struct {
	// FilePath 配置文件路径 (可选)
	FilePath string

	// Field 出错的配置项 (可选)
	Field string

	// Reason 错误原因
	Reason string

	// Cause 底层错误 (如viper.ConfigParseError)
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	switch {
	case e.FilePath != "":
		return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("配置错误 [%s]: %s: %v", e.Field, e.Reason, e.Cause)
	default:
		return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Reason)
	}
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsConfigError 判断是否为配置错误
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
