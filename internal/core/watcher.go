package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/crawlers"
	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/RecoveryAshes/urlwatcher/internal/utils"
	"github.com/rs/zerolog"
)

// Watcher 轮询队列文件的监视器
// 每个tick: 取出队列 → 依次抓取 → 失败条目带标记写回 → 等待间隔
type Watcher struct {
	id     string
	config *Config

	queue *crawlers.URLQueue
	batch *BatchFetcher

	// 外部注入的组件
	fetcher        crawlers.Fetcher
	headerProvider models.HeaderProvider
	logger         zerolog.Logger
	hooks          Hooks
	now            func() time.Time

	// unsaved 上一个tick写回失败的条目, 下一个tick开始时优先写回
	unsaved []models.QueueEntry

	ticks atomic.Int64
}

// Option 监视器选项
type Option func(*Watcher)

// WithLogger 使用指定的logger (默认使用utils.Logger)
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithFetcher 使用指定的抓取器 (默认根据配置创建StaticFetcher)
func WithFetcher(fetcher crawlers.Fetcher) Option {
	return func(w *Watcher) {
		w.fetcher = fetcher
	}
}

// WithHeaderProvider 使用指定的头部提供者 (默认只使用配置文件中的头部)
func WithHeaderProvider(provider models.HeaderProvider) Option {
	return func(w *Watcher) {
		w.headerProvider = provider
	}
}

// WithHooks 注册批处理回调
func WithHooks(hooks Hooks) Option {
	return func(w *Watcher) {
		w.hooks = hooks
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

// NewWatcher 创建监视器
// 配置无效时返回*models.ConfigError
func NewWatcher(config *Config, opts ...Option) (*Watcher, error) {
	if config == nil {
		return nil, &models.ConfigError{Field: "config", Reason: "配置不能为空"}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	w := &Watcher{
		id:     models.NewID(),
		config: config,
		queue:  crawlers.NewURLQueue(config.Watcher.QueuePath),
		logger: utils.Logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.fetcher == nil {
		if w.headerProvider == nil {
			hm, err := NewHeaderManager(config.Fetch.Headers, nil)
			if err != nil {
				return nil, &models.ConfigError{Field: "fetch.headers", Reason: "请求头无效", Cause: err}
			}
			w.headerProvider = hm
		}
		w.fetcher = crawlers.NewStaticFetcher(config.Fetch, w.headerProvider)
	}

	w.logger = w.logger.With().Str("watcher", w.id[:8]).Logger()
	w.batch = NewBatchFetcher(w.fetcher, config.Watcher.RateLimit, w.logger)
	w.batch.hooks = w.hooks
	w.batch.now = w.now

	return w, nil
}

// ID 返回监视器运行ID
func (w *Watcher) ID() string {
	return w.id
}

// QueuePath 返回队列文件路径
func (w *Watcher) QueuePath() string {
	return w.queue.Path()
}

// TickCount 返回已完成的tick数(含中止的tick)
func (w *Watcher) TickCount() int64 {
	return w.ticks.Load()
}

// Tick 执行一个tick
// 队列文件读写失败时返回*models.QueueFileError, 本轮中止
func (w *Watcher) Tick(ctx context.Context) (*models.TickSummary, error) {
	defer w.ticks.Add(1)
	tickID := models.NewID()

	// 1. 写回上一轮未能保存的条目
	if len(w.unsaved) > 0 {
		if err := w.queue.Append(w.unsaved); err != nil {
			return nil, err
		}
		w.logger.Info().Int("count", len(w.unsaved)).Msg("已补写上一轮未保存的条目")
		w.unsaved = nil
	}

	// 2. 确保队列文件存在
	if err := w.queue.Ensure(); err != nil {
		return nil, err
	}

	// 3. 取出全部条目并清空文件
	entries, err := w.queue.Drain()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		w.logger.Debug().Str("tick", tickID).Msg("队列为空")
		return &models.TickSummary{
			TickID:    tickID,
			QueuePath: w.queue.Path(),
			StartTime: w.now(),
			EndTime:   w.now(),
		}, nil
	}

	w.logger.Info().
		Str("tick", tickID).
		Int("count", len(entries)).
		Msgf("🚀 开始抓取: %d个URL", len(entries))

	// 4. 依次抓取
	outcome := w.batch.FetchBatch(ctx, tickID, w.queue.Path(), entries)

	// 5. 写回失败和未处理的条目
	if err := w.queue.Append(outcome.Leftovers); err != nil {
		w.unsaved = outcome.Leftovers
		return outcome.Summary, err
	}

	w.logSummary(outcome.Summary)
	if w.hooks.OnTickDone != nil {
		w.hooks.OnTickDone(outcome.Summary)
	}
	return outcome.Summary, nil
}

// logSummary 输出tick摘要
func (w *Watcher) logSummary(summary *models.TickSummary) {
	event := w.logger.Info()
	if summary.Failed > 0 {
		event = w.logger.Warn()
	}
	event.
		Str("tick", summary.TickID).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int64("bytes", summary.TotalBytes).
		Float64("duration", summary.Duration).
		Msg("📊 本轮完成")
}

// Run 运行监视循环, 直到ctx被取消
// 任何URL的抓取结果和队列文件错误都不会终止循环
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().
		Str("queue", w.queue.Path()).
		Dur("interval", w.config.Watcher.Interval).
		Msg("👀 开始监视队列文件")

	if _, err := crawlers.CheckQueueDisk(w.queue.Path(), crawlers.DefaultMinFreeBytes); err != nil {
		w.logger.Warn().Err(err).Msg("无法检查队列目录磁盘空间")
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flushUnsaved()
			w.logger.Info().Int64("ticks", w.TickCount()).Msg("监视器已停止")
			return nil
		case <-timer.C:
		}

		if _, err := w.Tick(ctx); err != nil {
			w.logger.Error().Err(err).Msg("本轮中止, 下一轮重试")
		}

		timer.Reset(w.config.Watcher.Interval)
	}
}

// flushUnsaved 停止前最后一次尝试写回未保存的条目
func (w *Watcher) flushUnsaved() {
	if len(w.unsaved) == 0 {
		return
	}
	if err := w.queue.Append(w.unsaved); err != nil {
		urls := make([]string, 0, len(w.unsaved))
		for _, entry := range w.unsaved {
			urls = append(urls, entry.URL)
		}
		w.logger.Error().Err(err).Strs("urls", urls).Msg("退出前写回队列失败")
		return
	}
	w.unsaved = nil
}

// Handle 后台运行中的监视器句柄
type Handle struct {
	watcher *Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// StartWatcher 在独立goroutine中启动监视器并立即返回
// 配置无效时返回*models.ConfigError, 监视器不会启动
func StartWatcher(ctx context.Context, config *Config, opts ...Option) (*Handle, error) {
	w, err := NewWatcher(config, opts...)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		watcher: w,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		runErr := w.Run(runCtx)

		h.mu.Lock()
		h.err = runErr
		h.mu.Unlock()
	}()

	return h, nil
}

// Stop 取消监视器并等待其退出
func (h *Handle) Stop() error {
	h.cancel()
	<-h.done
	return h.Err()
}

// Done 监视器退出时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err 返回监视器的退出错误, 正常停止时为nil
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Running 监视器是否仍在运行
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Watcher 返回底层监视器
func (h *Handle) Watcher() *Watcher {
	return h.watcher
}

// Decommission 停止监视器并删除队列文件
func (h *Handle) Decommission() error {
	if err := h.Stop(); err != nil {
		return err
	}
	return Decommission(h.watcher.QueuePath())
}

// Decommission 删除队列文件和锁文件
// 文件不存在时不报错; 这是删除队列文件的唯一途径
func Decommission(queuePath string) error {
	if queuePath == "" {
		return &models.ConfigError{Field: "watcher.queue_path", Reason: "队列文件路径不能为空"}
	}
	if err := crawlers.NewURLQueue(queuePath).Remove(); err != nil {
		return fmt.Errorf("删除队列文件失败: %w", err)
	}
	utils.Infof("🗑️  队列文件已删除: %s", queuePath)
	return nil
}

// IsQueueFileError 判断是否为队列文件读写错误
func IsQueueFileError(err error) bool {
	var queueErr *models.QueueFileError
	return errors.As(err, &queueErr)
}
