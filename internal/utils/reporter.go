package utils

import (
	"fmt"
	"io"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告输出器
// 将tick摘要和队列状态以文本或JSON形式写到指定输出
type Reporter struct {
	out  io.Writer
	json bool
}

// NewReporter 创建报告输出器
func NewReporter(out io.Writer, asJSON bool) *Reporter {
	return &Reporter{out: out, json: asJSON}
}

// PrintSummary 输出单个tick的摘要
func (r *Reporter) PrintSummary(summary *models.TickSummary) error {
	if r.json {
		return r.writeJSON(summary.ToJSON())
	}

	fmt.Fprintln(r.out, "==================================================")
	fmt.Fprintf(r.out, "📊 Tick摘要 (%s)\n", summary.TickID)
	fmt.Fprintln(r.out, "==================================================")
	fmt.Fprintf(r.out, "总URL数: %d\n", summary.Total)
	fmt.Fprintf(r.out, "✅ 成功: %d\n", summary.Succeeded)
	fmt.Fprintf(r.out, "❌ 失败: %d\n", summary.Failed)
	if summary.Skipped > 0 {
		fmt.Fprintf(r.out, "⏸️  未处理: %d\n", summary.Skipped)
	}
	fmt.Fprintf(r.out, "📦 总大小: %d B\n", summary.TotalBytes)
	fmt.Fprintf(r.out, "⏱️  总耗时: %.2f秒\n", summary.Duration)
	fmt.Fprintln(r.out, "==================================================")

	for _, failure := range summary.Failures {
		fmt.Fprintf(r.out, "  - %s (第%d次失败): %s\n", failure.URL, failure.Attempts, failure.ErrorMsg)
	}
	return nil
}

// PrintStatus 输出队列状态
func (r *Reporter) PrintStatus(status *models.QueueStatus) error {
	if r.json {
		return r.writeJSON(status.ToJSON())
	}

	if !status.Exists {
		fmt.Fprintf(r.out, "队列文件不存在: %s\n", status.QueuePath)
		return nil
	}

	fmt.Fprintf(r.out, "队列文件: %s\n", status.QueuePath)
	fmt.Fprintf(r.out, "待抓取: %d (其中失败过: %d, 最大失败次数: %d)\n",
		status.Pending, status.Failing, status.MaxAttempts)

	for _, entry := range status.Entries {
		if entry.Failed() {
			fmt.Fprintf(r.out, "  ❌ %s (失败%d次, 最近 %s)\n",
				entry.URL, entry.Attempts, entry.LastFailure.Local().Format(time.DateTime))
		} else {
			fmt.Fprintf(r.out, "  ⏳ %s\n", entry.URL)
		}
	}

	if status.Disk != nil {
		fmt.Fprintf(r.out, "磁盘: 剩余 %.2f MB / 共 %.2f MB (已用 %.1f%%)\n",
			float64(status.Disk.Free)/(1024*1024),
			float64(status.Disk.Total)/(1024*1024),
			status.Disk.UsedPercent)
		if status.Disk.LowSpace {
			fmt.Fprintln(r.out, "⚠️  磁盘剩余空间不足,失败URL可能无法写回队列")
		}
	}
	return nil
}

// writeJSON 写入JSON并换行
func (r *Reporter) writeJSON(data []byte, err error) error {
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if _, err := r.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string, out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
