package core

import (
	"context"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/crawlers"
	"github.com/RecoveryAshes/urlwatcher/internal/models"
)

// QueueStatusOf 读取队列文件当前状态, 不消费队列
func QueueStatusOf(queuePath string, withDisk bool) (*models.QueueStatus, error) {
	entries, exists, err := crawlers.NewURLQueue(queuePath).Peek()
	if err != nil {
		return nil, err
	}

	entries = models.DedupeEntries(entries)
	status := &models.QueueStatus{
		QueuePath: queuePath,
		Exists:    exists,
		Pending:   len(entries),
		Entries:   entries,
	}
	for _, entry := range entries {
		if entry.Failed() {
			status.Failing++
		}
		if entry.Attempts > status.MaxAttempts {
			status.MaxAttempts = entry.Attempts
		}
	}

	if withDisk {
		disk, err := crawlers.CheckQueueDisk(queuePath, crawlers.DefaultMinFreeBytes)
		if err == nil {
			status.Disk = disk
		}
	}

	return status, nil
}

// MonitorStatus 按固定间隔输出队列状态, 直到ctx被取消
// interval<=0 时立即返回
func (w *Watcher) MonitorStatus(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			status, err := QueueStatusOf(w.queue.Path(), false)
			if err != nil {
				w.logger.Warn().Err(err).Msg("读取队列状态失败")
				continue
			}
			w.logger.Info().
				Int("pending", status.Pending).
				Int("failing", status.Failing).
				Int("max_attempts", status.MaxAttempts).
				Int64("ticks", w.TickCount()).
				Msg("📋 队列状态")
		}
	}
}
