package core

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// 测试目录中没有配置文件, 全部使用默认值
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	defaults := DefaultConfig()
	if config.Watcher.Interval != defaults.Watcher.Interval {
		t.Errorf("interval 期望 %v, 实际: %v", defaults.Watcher.Interval, config.Watcher.Interval)
	}
	if config.Fetch.Timeout != models.DefaultFetchTimeout {
		t.Errorf("timeout 期望 %v, 实际: %v", models.DefaultFetchTimeout, config.Fetch.Timeout)
	}
	if config.Fetch.MaxBodySize != models.DefaultMaxBodySize {
		t.Errorf("max_body_size 期望 %d, 实际: %d", models.DefaultMaxBodySize, config.Fetch.MaxBodySize)
	}
	if config.Fetch.Headers == nil {
		t.Error("headers 不应为nil")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `watcher:
  queue_path: /tmp/queue.txt
  interval: 2s
  rate_limit: 5
fetch:
  timeout: 3s
  headers:
    X-Test: abc
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if config.Watcher.QueuePath != "/tmp/queue.txt" {
		t.Errorf("queue_path 期望 /tmp/queue.txt, 实际: %s", config.Watcher.QueuePath)
	}
	if config.Watcher.Interval != 2*time.Second {
		t.Errorf("interval 期望 2s, 实际: %v", config.Watcher.Interval)
	}
	if config.Watcher.RateLimit != 5 {
		t.Errorf("rate_limit 期望 5, 实际: %v", config.Watcher.RateLimit)
	}
	if config.Fetch.Timeout != 3*time.Second {
		t.Errorf("timeout 期望 3s, 实际: %v", config.Fetch.Timeout)
	}
	// 未指定的项使用默认值
	if config.Fetch.MaxRedirects != models.DefaultMaxRedirects {
		t.Errorf("max_redirects 期望默认值, 实际: %d", config.Fetch.MaxRedirects)
	}
	if config.Fetch.SnippetLength != models.DefaultSnippetLength {
		t.Errorf("snippet_length 期望默认值, 实际: %d", config.Fetch.SnippetLength)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("level 期望 debug, 实际: %s", config.Logging.Level)
	}

	// viper的键不区分大小写, 通过http.Header规范化后比较
	found := false
	for name, value := range config.Fetch.Headers {
		if http.CanonicalHeaderKey(name) == "X-Test" && value == "abc" {
			found = true
		}
	}
	if !found {
		t.Errorf("期望包含X-Test头部, 实际: %v", config.Fetch.Headers)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("配置应有效: %v", err)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("watcher:\n  interval: 2s\n"), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	t.Setenv("URLWATCHER_WATCHER_INTERVAL", "7s")
	t.Setenv("URLWATCHER_FETCH_MAX_REDIRECTS", "3")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if config.Watcher.Interval != 7*time.Second {
		t.Errorf("环境变量应覆盖配置文件, 实际: %v", config.Watcher.Interval)
	}
	if config.Fetch.MaxRedirects != 3 {
		t.Errorf("max_redirects 期望 3, 实际: %d", config.Fetch.MaxRedirects)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("watcher: [unclosed\n"), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	_, err := LoadConfig(path)
	if !models.IsConfigError(err) {
		t.Errorf("期望ConfigError, 实际: %v", err)
	}
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCLIFlags("", 0, "")
	if config.Watcher.QueuePath != models.DefaultQueuePath || config.Watcher.Interval != models.DefaultInterval {
		t.Errorf("零值参数不应覆盖配置: %+v", config.Watcher)
	}

	config.MergeCLIFlags("other.txt", 3*time.Second, "warn")
	if config.Watcher.QueuePath != "other.txt" {
		t.Errorf("queue 期望 other.txt, 实际: %s", config.Watcher.QueuePath)
	}
	if config.Watcher.Interval != 3*time.Second {
		t.Errorf("interval 期望 3s, 实际: %v", config.Watcher.Interval)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("level 期望 warn, 实际: %s", config.Logging.Level)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		config.MergeCLIFlags("~/queue.txt", 0, "")
		if !strings.HasPrefix(config.Watcher.QueuePath, home) {
			t.Errorf("~ 应展开为主目录, 实际: %s", config.Watcher.QueuePath)
		}
	}
}

func TestConfig_LogConfig(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = "debug"
	config.Logging.LogDir = ""

	logConfig := config.LogConfig()
	if logConfig.Level != "debug" || logConfig.LogDir != "" {
		t.Errorf("日志配置转换错误: %+v", logConfig)
	}
	if logConfig.MaxSize != config.Logging.Rotation.MaxSize {
		t.Errorf("轮转配置转换错误: %+v", logConfig)
	}
}

func TestHeaderManager(t *testing.T) {
	t.Run("优先级", func(t *testing.T) {
		hm, err := NewHeaderManager(
			map[string]string{"user-agent": "ConfigAgent", "x-config": "1"},
			[]string{"User-Agent: CliAgent", "Authorization: Bearer secret-token-123"},
		)
		if err != nil {
			t.Fatalf("创建失败: %v", err)
		}

		headers, err := hm.GetHeaders()
		if err != nil {
			t.Fatalf("获取头部失败: %v", err)
		}
		if got := headers.Get("User-Agent"); got != "CliAgent" {
			t.Errorf("命令行应覆盖配置, 实际: %s", got)
		}
		if got := headers.Get("X-Config"); got != "1" {
			t.Errorf("配置头部缺失, 实际: %s", got)
		}
		if got := headers.Get("Accept"); got != "*/*" {
			t.Errorf("默认头部缺失, 实际: %s", got)
		}

		safe := hm.GetSafeHeaders()
		if strings.Contains(safe["Authorization"], "secret-token-123") {
			t.Errorf("敏感头部应脱敏, 实际: %s", safe["Authorization"])
		}
	})

	t.Run("默认User-Agent", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, nil)
		if err != nil {
			t.Fatalf("创建失败: %v", err)
		}
		headers, _ := hm.GetHeaders()
		if !strings.HasPrefix(headers.Get("User-Agent"), "urlwatcher/") {
			t.Errorf("默认User-Agent错误: %s", headers.Get("User-Agent"))
		}
	})

	t.Run("命令行格式错误", func(t *testing.T) {
		if _, err := NewHeaderManager(nil, []string{"NoColon"}); err == nil {
			t.Error("期望返回错误")
		}
	})

	t.Run("禁止的头部", func(t *testing.T) {
		hm, err := NewHeaderManager(nil, []string{"Host: evil.example"})
		if err != nil {
			t.Fatalf("创建失败: %v", err)
		}
		if _, err := hm.GetHeaders(); err == nil {
			t.Error("Host头部应被拒绝")
		}
	})

	t.Run("返回副本", func(t *testing.T) {
		hm, _ := NewHeaderManager(nil, nil)
		headers, _ := hm.GetHeaders()
		headers.Set("Accept", "text/html")

		again, _ := hm.GetHeaders()
		if again.Get("Accept") != "*/*" {
			t.Error("修改返回值不应影响管理器")
		}
	})
}
