package core

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/crawlers"
	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Hooks 批处理过程中的回调, 均可为nil
// 回调在监视器goroutine中同步执行
type Hooks struct {
	// OnBatchStart 取出队列后、开始抓取前调用
	OnBatchStart func(tickID string, total int)

	// OnResult 每个URL抓取完成后调用
	OnResult func(result *models.FetchResult)

	// OnTickDone 每个tick结束(剩余条目已写回)后调用
	OnTickDone func(summary *models.TickSummary)
}

// BatchFetcher 按顺序抓取一个tick取出的全部条目
type BatchFetcher struct {
	fetcher crawlers.Fetcher
	limiter *rate.Limiter
	logger  zerolog.Logger
	hooks   Hooks
	now     func() time.Time
}

// BatchOutcome 一批条目的处理结果
type BatchOutcome struct {
	// Leftovers 需要写回队列的条目, 保持取出时的相对顺序
	//   - 失败的条目带更新后的失败标记
	//   - 因取消未处理的条目原样保留
	Leftovers []models.QueueEntry

	// Summary 统计信息
	Summary *models.TickSummary
}

// NewBatchFetcher 创建批量抓取器
// rateLimit为每秒最大请求数, 0表示不限制
func NewBatchFetcher(fetcher crawlers.Fetcher, rateLimit float64, logger zerolog.Logger) *BatchFetcher {
	bf := &BatchFetcher{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
	if rateLimit > 0 {
		bf.limiter = rate.NewLimiter(rate.Limit(rateLimit), 1)
	}
	return bf
}

// FetchBatch 依次抓取条目
// 取消后不再发起新请求, 剩余条目原样进入Leftovers
func (bf *BatchFetcher) FetchBatch(ctx context.Context, tickID, queuePath string, entries []models.QueueEntry) *BatchOutcome {
	startTime := bf.now()
	summary := &models.TickSummary{
		TickID:    tickID,
		QueuePath: queuePath,
		StartTime: startTime,
		Total:     len(entries),
	}
	outcome := &BatchOutcome{
		Leftovers: make([]models.QueueEntry, 0),
		Summary:   summary,
	}

	if bf.hooks.OnBatchStart != nil {
		bf.hooks.OnBatchStart(tickID, len(entries))
	}

	for i, entry := range entries {
		if !bf.wait(ctx) {
			outcome.skip(entries[i:])
			break
		}

		result := bf.fetcher.Fetch(ctx, entry.URL)

		// 取消导致的失败不算一次尝试
		if isCanceled(result.Error) {
			outcome.skip(entries[i:])
			break
		}

		if bf.hooks.OnResult != nil {
			bf.hooks.OnResult(result)
		}

		if result.Success {
			summary.Succeeded++
			summary.TotalBytes += int64(result.Bytes)
			bf.logSuccess(tickID, result)
			continue
		}

		failed := entry.MarkFailed(bf.now())
		summary.Failed++
		summary.Failures = append(summary.Failures, models.FailedURLInfo{
			URL:       entry.URL,
			ErrorType: string(errorKind(result.Error)),
			ErrorMsg:  result.ErrorText(),
			Attempts:  failed.Attempts,
		})
		outcome.Leftovers = append(outcome.Leftovers, failed)
		bf.logFailure(tickID, result, failed)
	}

	summary.EndTime = bf.now()
	summary.Duration = summary.EndTime.Sub(startTime).Seconds()
	return outcome
}

// wait 等待速率限制令牌, 返回false表示已取消
func (bf *BatchFetcher) wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if bf.limiter == nil {
		return true
	}
	return bf.limiter.Wait(ctx) == nil
}

// skip 将未处理的条目原样放回
func (o *BatchOutcome) skip(rest []models.QueueEntry) {
	o.Leftovers = append(o.Leftovers, rest...)
	o.Summary.Skipped += len(rest)
}

// logSuccess 每个成功的URL输出一行日志
func (bf *BatchFetcher) logSuccess(tickID string, result *models.FetchResult) {
	event := bf.logger.Info().
		Str("tick", tickID).
		Str("url", result.URL).
		Int("status", result.StatusCode).
		Int("bytes", result.Bytes).
		Dur("elapsed", result.Duration)
	if result.Title != "" {
		event = event.Str("title", result.Title)
	}
	event.Str("snippet", result.Snippet).Msg("✅ 抓取成功")
}

// logFailure 每个失败的URL输出一行日志
func (bf *BatchFetcher) logFailure(tickID string, result *models.FetchResult, entry models.QueueEntry) {
	event := bf.logger.Error().
		Str("tick", tickID).
		Str("url", result.URL).
		Str("kind", string(errorKind(result.Error))).
		Int("attempts", entry.Attempts).
		Dur("elapsed", result.Duration)
	if result.StatusCode != 0 {
		event = event.Int("status", result.StatusCode)
	}
	event.Err(result.Error).Msg("❌ 抓取失败, 已重新入队")
}

// errorKind 取出FetchError的分类
func errorKind(err error) models.FetchErrorKind {
	var fetchErr *models.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return models.FetchErrNetwork
}

// isCanceled 是否为监视器取消导致的失败
func isCanceled(err error) bool {
	if err == nil {
		return false
	}
	return errorKind(err) == models.FetchErrCanceled || errors.Is(err, context.Canceled)
}
