package main

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/RecoveryAshes/urlwatcher/internal/core"
	"github.com/RecoveryAshes/urlwatcher/internal/crawlers"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  urlwatcher 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)

	// 检查Go版本是否满足要求
	if strings.HasPrefix(goVersion, "go1.21") || strings.HasPrefix(goVersion, "go1.22") {
		fmt.Println("⚠️  警告: 建议使用Go 1.23+版本")
	}

	// 检查操作系统
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查配置
	fmt.Println()
	fmt.Println("检查配置...")
	config, err := core.LoadConfig("")
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		allOK = false
	} else if err := config.Validate(); err != nil {
		fmt.Printf("❌ 配置无效: %v\n", err)
		allOK = false
	} else {
		fmt.Printf("✅ 队列文件: %s (间隔 %v)\n", config.Watcher.QueuePath, config.Watcher.Interval)
	}

	// 检查队列文件和磁盘空间
	if config != nil {
		status, err := core.QueueStatusOf(config.Watcher.QueuePath, false)
		if err != nil {
			fmt.Printf("❌ 无法读取队列文件: %v\n", err)
			allOK = false
		} else if status.Exists {
			fmt.Printf("✅ 队列中有%d个待抓取URL\n", status.Pending)
		} else {
			fmt.Println("✅ 队列文件尚不存在, 首次运行时自动创建")
		}

		disk, err := crawlers.CheckQueueDisk(config.Watcher.QueuePath, crawlers.DefaultMinFreeBytes)
		if err != nil {
			fmt.Printf("⚠️  无法检查磁盘空间: %v\n", err)
		} else if disk.LowSpace {
			fmt.Printf("❌ 队列目录剩余空间不足: %.2f MB\n", float64(disk.Free)/(1024*1024))
			allOK = false
		} else {
			fmt.Printf("✅ 队列目录剩余空间: %.2f MB\n", float64(disk.Free)/(1024*1024))
		}
	}

	// 检查项目依赖
	fmt.Println()
	fmt.Println("检查Go模块依赖...")
	if _, err := os.Stat("go.mod"); err == nil {
		fmt.Println("✅ go.mod文件存在")

		// 运行go mod download
		fmt.Println("正在下载依赖...")
		cmd := exec.Command("go", "mod", "download")
		if err := cmd.Run(); err != nil {
			fmt.Printf("❌ go mod download失败: %v\n", err)
			allOK = false
		} else {
			fmt.Println("✅ 依赖下载完成")
		}
	} else {
		fmt.Println("❌ go.mod文件不存在")
		allOK = false
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/urlwatcher",
		"internal/core",
		"internal/crawlers",
		"internal/utils",
		"internal/models",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/urlwatcher' 构建项目")
		fmt.Println("  2. 运行 './urlwatcher add https://example.com' 添加URL")
		fmt.Println("  3. 运行 './urlwatcher run' 开始监视")
		os.Exit(0)
	} else {
		fmt.Println("❌ 环境验证失败,请解决上述问题。")
		os.Exit(1)
	}
}
