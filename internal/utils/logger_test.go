package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLogger(t *testing.T) {
	// 创建临时日志目录
	tempDir := filepath.Join(t.TempDir(), "logs")

	config := LogConfig{
		Level:      "debug",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Console:    &bytes.Buffer{},
	}

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	// 验证日志目录已创建
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Errorf("日志目录未创建: %s", tempDir)
	}

	Info("测试信息日志")
	Warn("测试警告日志")

	// 验证主日志文件存在
	mainLogPath := filepath.Join(tempDir, MainLogFile)
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()
	console := &bytes.Buffer{}

	config := LogConfig{
		Level:   "info",
		LogDir:  tempDir,
		MaxSize: 10,
		NoColor: true,
		Console: console,
	}

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	Infof("格式化信息日志: %s", "可见")
	Debugf("格式化调试日志: %v", "不可见")
	Errorf("格式化错误日志: %d", 42)

	output := console.String()
	if !strings.Contains(output, "可见") {
		t.Errorf("控制台缺少info日志: %s", output)
	}
	if strings.Contains(output, "不可见") {
		t.Errorf("info级别下不应输出debug日志: %s", output)
	}

	// 错误日志文件只包含错误级别
	content, err := os.ReadFile(filepath.Join(tempDir, ErrorLogFile))
	if err != nil {
		t.Fatalf("读取错误日志文件失败: %v", err)
	}
	if !strings.Contains(string(content), "格式化错误日志") {
		t.Errorf("错误日志文件缺少错误日志: %s", content)
	}
	if strings.Contains(string(content), "格式化信息日志") {
		t.Errorf("错误日志文件不应包含info日志: %s", content)
	}
}

func TestInitLogger_ConsoleOnly(t *testing.T) {
	console := &bytes.Buffer{}

	if err := InitLogger(LogConfig{Level: "bogus", Console: console, NoColor: true}); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("无效级别应回退到info, 实际 %s", zerolog.GlobalLevel())
	}

	Info("只输出到控制台")
	if !strings.Contains(console.String(), "只输出到控制台") {
		t.Errorf("控制台输出缺失: %s", console.String())
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}
	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}
	if config.MaxSize != 10 || config.MaxBackups != 3 || config.MaxAge != 28 {
		t.Errorf("默认轮转参数错误: %+v", config)
	}
	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}
