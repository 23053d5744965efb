package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/RecoveryAshes/urlwatcher/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 URLWATCHER_WATCHER_INTERVAL=2s
const EnvPrefix = "URLWATCHER"

// Config 应用程序配置
type Config struct {
	Watcher models.WatchConfig `mapstructure:"watcher"`
	Fetch   models.FetchConfig `mapstructure:"fetch"`
	Logging LoggingConfig      `mapstructure:"logging"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	NoColor  bool           `mapstructure:"no_color"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// DefaultConfig 返回全部使用默认值的配置
func DefaultConfig() *Config {
	logConfig := utils.DefaultLogConfig()
	return &Config{
		Watcher: models.WatchConfig{
			QueuePath: models.DefaultQueuePath,
			Interval:  models.DefaultInterval,
		},
		Fetch: models.DefaultFetchConfig(),
		Logging: LoggingConfig{
			Level:  logConfig.Level,
			LogDir: logConfig.LogDir,
			Rotation: RotationConfig{
				MaxSize:    logConfig.MaxSize,
				MaxBackups: logConfig.MaxBackups,
				MaxAge:     logConfig.MaxAge,
				Compress:   logConfig.Compress,
			},
		},
	}
}

// LoadConfig 加载配置
// 优先级: 环境变量(含.env) > 配置文件 > 默认值; 命令行参数由MergeCLIFlags覆盖
func LoadConfig(configPath string) (*Config, error) {
	// 加载当前目录的.env (不存在时忽略, 不覆盖已有环境变量)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &models.ConfigError{FilePath: ".env", Cause: err}
	}

	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".urlwatcher"))
		}
	}

	// 环境变量绑定
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPathOrDefault(v, configPath), Cause: err}
		}
		// 配置文件不存在,使用默认值
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: configPathOrDefault(v, configPath),
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	if config.Fetch.Headers == nil {
		config.Fetch.Headers = make(map[string]string)
	}
	config.Watcher.ExpandQueuePath()

	return &config, nil
}

// configPathOrDefault 返回实际使用的配置文件路径
func configPathOrDefault(v *viper.Viper, configPath string) string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	return configPath
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	// 监视器默认值
	v.SetDefault("watcher.queue_path", defaults.Watcher.QueuePath)
	v.SetDefault("watcher.interval", defaults.Watcher.Interval)
	v.SetDefault("watcher.rate_limit", 0.0)
	v.SetDefault("watcher.status_interval", time.Duration(0))

	// 抓取默认值
	v.SetDefault("fetch.timeout", defaults.Fetch.Timeout)
	v.SetDefault("fetch.max_redirects", defaults.Fetch.MaxRedirects)
	v.SetDefault("fetch.snippet_length", defaults.Fetch.SnippetLength)
	v.SetDefault("fetch.max_body_size", defaults.Fetch.MaxBodySize)
	v.SetDefault("fetch.respect_robots_txt", false)
	v.SetDefault("fetch.headers", map[string]string{})

	// 日志配置默认值
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.log_dir", defaults.Logging.LogDir)
	v.SetDefault("logging.no_color", false)
	v.SetDefault("logging.rotation.max_size", defaults.Logging.Rotation.MaxSize)
	v.SetDefault("logging.rotation.max_backups", defaults.Logging.Rotation.MaxBackups)
	v.SetDefault("logging.rotation.max_age", defaults.Logging.Rotation.MaxAge)
	v.SetDefault("logging.rotation.compress", defaults.Logging.Rotation.Compress)
}

// Validate 验证配置, 任何错误都是ConfigError
func (c *Config) Validate() error {
	if err := c.Watcher.Validate(); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}

	validator := utils.NewHeaderValidator()
	for name, value := range c.Fetch.Headers {
		if err := validator.ValidateHeader(name, value); err != nil {
			return &models.ConfigError{Field: "fetch.headers", Reason: "请求头无效", Cause: err}
		}
	}
	return nil
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件, 零值表示未指定
func (c *Config) MergeCLIFlags(queuePath string, interval time.Duration, logLevel string) {
	if queuePath != "" {
		c.Watcher.QueuePath = queuePath
		c.Watcher.ExpandQueuePath()
	}
	if interval != 0 {
		c.Watcher.Interval = interval
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
		NoColor:    c.Logging.NoColor,
	}
}
