package models

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultQueuePath 默认队列文件
	DefaultQueuePath = "urls.txt"

	// DefaultInterval 默认轮询间隔
	DefaultInterval = 1 * time.Second

	// DefaultFetchTimeout 单个请求的总超时
	DefaultFetchTimeout = 5 * time.Second

	// DefaultMaxRedirects 最大重定向次数
	DefaultMaxRedirects = 10

	// DefaultSnippetLength 日志中响应片段的字节数
	DefaultSnippetLength = 120

	// DefaultMaxBodySize 响应体读取上限 (10MB)
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// WatchConfig 监视循环配置
type WatchConfig struct {
	QueuePath      string        `json:"queue_path" mapstructure:"queue_path"`           // 队列文件路径 (默认:urls.txt)
	Interval       time.Duration `json:"interval" mapstructure:"interval"`               // 轮询间隔 (默认:1s)
	RateLimit      float64       `json:"rate_limit" mapstructure:"rate_limit"`           // 每秒最大请求数, 0为不限制
	StatusInterval time.Duration `json:"status_interval" mapstructure:"status_interval"` // 队列状态日志间隔, 0为关闭
}

// Validate 验证配置
func (c *WatchConfig) Validate() error {
	if strings.TrimSpace(c.QueuePath) == "" {
		return &ConfigError{Field: "watcher.queue_path", Reason: "队列文件路径不能为空"}
	}
	if info, err := os.Stat(c.QueuePath); err == nil && info.IsDir() {
		return &ConfigError{Field: "watcher.queue_path", Reason: "队列文件路径是一个目录: " + c.QueuePath}
	}
	if c.Interval <= 0 {
		return &ConfigError{Field: "watcher.interval", Reason: "轮询间隔必须为正数"}
	}
	if c.RateLimit < 0 {
		return &ConfigError{Field: "watcher.rate_limit", Reason: "速率限制不能为负数"}
	}
	if c.StatusInterval < 0 {
		return &ConfigError{Field: "watcher.status_interval", Reason: "状态日志间隔不能为负数"}
	}
	return nil
}

// ExpandQueuePath 展开路径中的 ~ 前缀
func (c *WatchConfig) ExpandQueuePath() {
	if c.QueuePath == "~" || strings.HasPrefix(c.QueuePath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.QueuePath = filepath.Join(home, strings.TrimPrefix(c.QueuePath, "~"))
		}
	}
}

// FetchConfig HTTP抓取配置
type FetchConfig struct {
	Timeout          time.Duration     `json:"timeout" mapstructure:"timeout"`                       // 请求总超时 (默认:5s)
	MaxRedirects     int               `json:"max_redirects" mapstructure:"max_redirects"`           // 最大重定向次数 (默认:10)
	SnippetLength    int               `json:"snippet_length" mapstructure:"snippet_length"`         // 日志片段长度 (默认:120)
	MaxBodySize      int               `json:"max_body_size" mapstructure:"max_body_size"`           // 响应体上限(字节)
	RespectRobotsTxt bool              `json:"respect_robots_txt" mapstructure:"respect_robots_txt"` // 是否遵守robots.txt
	Headers          map[string]string `json:"headers" mapstructure:"headers"`                       // 自定义请求头
}

// DefaultFetchConfig 默认抓取配置
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:       DefaultFetchTimeout,
		MaxRedirects:  DefaultMaxRedirects,
		SnippetLength: DefaultSnippetLength,
		MaxBodySize:   DefaultMaxBodySize,
		Headers:       make(map[string]string),
	}
}

// Validate 验证配置
func (c *FetchConfig) Validate() error {
	if c.Timeout <= 0 {
		return &ConfigError{Field: "fetch.timeout", Reason: "请求超时必须为正数"}
	}
	if c.MaxRedirects < 0 {
		return &ConfigError{Field: "fetch.max_redirects", Reason: "重定向次数不能为负数"}
	}
	if c.SnippetLength < 0 {
		return &ConfigError{Field: "fetch.snippet_length", Reason: "片段长度不能为负数"}
	}
	if c.MaxBodySize < 0 {
		return &ConfigError{Field: "fetch.max_body_size", Reason: "响应体上限不能为负数"}
	}
	return nil
}

// FetchResult 单个URL的抓取结果
// 不持久化,只用于决定URL是移出队列还是带标记重新入队
type FetchResult struct {
	URL        string        `json:"url"`
	Success    bool          `json:"success"`
	StatusCode int           `json:"status_code,omitempty"`
	Bytes      int           `json:"bytes"`
	Snippet    string        `json:"snippet,omitempty"`
	Title      string        `json:"title,omitempty"`
	Error      error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// ErrorText 错误描述(成功时为空)
func (r *FetchResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}
