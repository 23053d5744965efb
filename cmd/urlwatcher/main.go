package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/core"
	"github.com/RecoveryAshes/urlwatcher/internal/crawlers"
	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/RecoveryAshes/urlwatcher/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	queuePath  string
	interval   time.Duration

	// HTTP头部参数
	headers []string // 自定义HTTP请求头

	// once 参数
	onceJSON     bool
	onceProgress bool

	// add 参数
	addFile string

	// status 参数
	statusJSON bool
)

// appConfig 在PersistentPreRunE中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "urlwatcher",
	Short: "轮询队列文件并抓取其中的URL",
	Long: `urlwatcher - 以文本文件为队列的URL抓取器

每个周期取出队列文件中的全部URL依次抓取:
  • 成功的URL从队列中移除, 日志记录响应片段
  • 失败的URL带失败标记写回队列, 下一周期重试
  • 队列文件只有 decommission 命令才会删除

示例:
  # 持续监视 urls.txt, 每2秒一轮
  urlwatcher run -q urls.txt -i 2s

  # 添加URL
  urlwatcher add https://example.com https://example.org

  # 自定义请求头
  urlwatcher run -H "User-Agent: MyBot/1.0" -H "Authorization: Bearer token"

  # 查看队列状态
  urlwatcher status`,
	Version:       core.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(interval, headers); err != nil {
			return err
		}

		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		config.MergeCLIFlags(queuePath, interval, logLevel)
		if verbose && logLevel == "" {
			config.Logging.Level = "debug"
		}

		// 初始化日志系统
		logConfig := config.LogConfig()
		if wantsJSON(cmd) {
			// 标准输出留给JSON
			logConfig.Console = os.Stderr
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "持续监视队列文件, 直到收到中断信号",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 设置信号处理(Ctrl+C优雅退出)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		headerManager, err := core.NewHeaderManager(appConfig.Fetch.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		handle, err := core.StartWatcher(ctx, appConfig, core.WithHeaderProvider(headerManager))
		if err != nil {
			return fmt.Errorf("启动监视器失败: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)

		// 监视循环
		g.Go(func() error {
			<-handle.Done()
			return handle.Err()
		})

		// 队列状态日志
		g.Go(func() error {
			return handle.Watcher().MonitorStatus(gctx, appConfig.Watcher.StatusInterval)
		})

		// 中断信号
		g.Go(func() error {
			<-gctx.Done()
			if ctx.Err() != nil {
				utils.Warn("收到中断信号, 正在优雅关闭...")
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}

		utils.Info("✨ 监视器已退出")
		return nil
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "执行一轮抓取后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		headerManager, err := core.NewHeaderManager(appConfig.Fetch.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		opts := []core.Option{core.WithHeaderProvider(headerManager)}
		if onceProgress {
			opts = append(opts, core.WithHooks(progressHooks()))
		}

		watcher, err := core.NewWatcher(appConfig, opts...)
		if err != nil {
			return fmt.Errorf("创建监视器失败: %w", err)
		}

		summary, err := watcher.Tick(ctx)
		if err != nil {
			return fmt.Errorf("抓取失败: %w", err)
		}

		return utils.NewReporter(os.Stdout, onceJSON).PrintSummary(summary)
	},
}

// progressHooks 在标准错误上显示进度条
func progressHooks() core.Hooks {
	var bar *progressbar.ProgressBar
	return core.Hooks{
		OnBatchStart: func(tickID string, total int) {
			bar = utils.NewProgressBar(total, "抓取URL", os.Stderr)
		},
		OnResult: func(result *models.FetchResult) {
			if bar != nil {
				bar.Add(1)
			}
		},
		OnTickDone: func(summary *models.TickSummary) {
			if bar != nil {
				bar.Finish()
			}
		},
	}
}

var addCmd = &cobra.Command{
	Use:   "add [url...]",
	Short: "向队列文件追加URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := make([]string, 0, len(args))
		for _, arg := range args {
			normalized, err := NormalizeURL(arg)
			if err != nil {
				return fmt.Errorf("无效的URL %q: %w", arg, err)
			}
			urls = append(urls, normalized)
		}

		if addFile != "" {
			fromFile, err := utils.ReadURLsFromFile(addFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}

		if len(urls) == 0 {
			return fmt.Errorf("至少需要一个URL (参数或 --file)")
		}
		if err := ValidateURLs(urls); err != nil {
			return err
		}

		queue := crawlers.NewURLQueue(appConfig.Watcher.QueuePath)
		if err := queue.AppendURLs(urls); err != nil {
			return fmt.Errorf("写入队列失败: %w", err)
		}

		utils.Infof("✅ 已添加%d个URL到 %s", len(urls), queue.Path())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示队列中待抓取的URL(不消费队列)",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := core.QueueStatusOf(appConfig.Watcher.QueuePath, true)
		if err != nil {
			return fmt.Errorf("读取队列状态失败: %w", err)
		}
		return utils.NewReporter(os.Stdout, statusJSON).PrintStatus(status)
	},
}

var decommissionCmd = &cobra.Command{
	Use:   "decommission",
	Short: "删除队列文件和锁文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		return core.Decommission(appConfig.Watcher.QueuePath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("urlwatcher %s\n", core.Version)
		fmt.Printf("构建时间: %s\n", core.BuildTime)
	},
}

// wantsJSON 当前命令是否以JSON输出
func wantsJSON(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("json")
	return flag != nil && flag.Value.String() == "true"
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&queuePath, "queue", "q", "", "队列文件路径 (默认: urls.txt)")
	rootCmd.PersistentFlags().DurationVarP(&interval, "interval", "i", 0, "轮询间隔 (默认: 1s)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	onceCmd.Flags().BoolVar(&onceJSON, "json", false, "以JSON输出本轮摘要")
	onceCmd.Flags().BoolVar(&onceProgress, "progress", false, "显示进度条")

	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "从文件读取URL列表")

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "以JSON输出")

	// 添加子命令
	rootCmd.AddCommand(runCmd, onceCmd, addCmd, statusCmd, decommissionCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
