package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
)

// ReadURLsFromFile 从文件中读取URL列表 (用于 add --file)
func ReadURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	return ReadURLs(file)
}

// ReadURLs 逐行读取URL
// 跳过空行、注释行和格式无效的URL
func ReadURLs(r io.Reader) ([]string, error) {
	urls := make([]string, 0)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// 验证URL格式
		if err := ValidateURL(line); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("URL文件中没有有效的URL")
	}

	return urls, nil
}

// ValidateURL 验证URL格式
func ValidateURL(rawURL string) error {
	if strings.ContainsAny(rawURL, " \t") {
		return fmt.Errorf("URL不能包含空白字符")
	}
	return models.ValidateURL(rawURL)
}
