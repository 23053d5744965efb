package models

import (
	"encoding/json"
	"time"
)

// TickSummary 单个tick的执行摘要
type TickSummary struct {
	// tick信息
	TickID    string `json:"tick_id"`
	QueuePath string `json:"queue_path"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Total      int   `json:"total"`       // 本轮取出的URL数
	Succeeded  int   `json:"succeeded"`   // 成功数
	Failed     int   `json:"failed"`      // 失败数(已带标记重新入队)
	Skipped    int   `json:"skipped"`     // 因取消未处理、原样写回的数量
	TotalBytes int64 `json:"total_bytes"` // 成功响应的总字节数

	// 失败列表
	Failures []FailedURLInfo `json:"failures,omitempty"`
}

// FailedURLInfo 失败URL信息
type FailedURLInfo struct {
	URL       string `json:"url"`
	ErrorType string `json:"error_type"` // timeout, network, http_status等
	ErrorMsg  string `json:"error_msg"`
	Attempts  int    `json:"attempts"`
}

// Requeued 写回队列文件的条目数
func (s *TickSummary) Requeued() int {
	return s.Failed + s.Skipped
}

// ToJSON 序列化为JSON
func (s *TickSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// QueueStatus 队列文件当前状态(不消费队列)
type QueueStatus struct {
	QueuePath   string       `json:"queue_path"`
	Exists      bool         `json:"exists"`
	Pending     int          `json:"pending"`      // 待抓取条目数
	Failing     int          `json:"failing"`      // 带失败标记的条目数
	MaxAttempts int          `json:"max_attempts"` // 最大失败次数
	Entries     []QueueEntry `json:"entries"`
	Disk        *DiskStatus  `json:"disk,omitempty"`
}

// DiskStatus 队列文件所在磁盘状态
type DiskStatus struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	LowSpace    bool    `json:"low_space"`
}

// ToJSON 序列化为JSON
func (s *QueueStatus) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
