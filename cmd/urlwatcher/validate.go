package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/RecoveryAshes/urlwatcher/internal/utils"
)

// ValidateFlags 验证命令行标志
// 零值表示未指定, 由配置文件或默认值决定
func ValidateFlags(interval time.Duration, headers []string) error {
	// 验证间隔
	if interval < 0 {
		return fmt.Errorf("轮询间隔必须为正数,当前值: %v", interval)
	}

	// 验证头部格式
	if _, err := models.CliHeaders(headers).Parse(); err != nil {
		return err
	}

	return nil
}

// ValidateURLs 验证URL列表, 返回第一个无效URL的错误
func ValidateURLs(urls []string) error {
	for i, u := range urls {
		if err := utils.ValidateURL(u); err != nil {
			return fmt.Errorf("第%d个URL无效 (%s): %w", i+1, u, err)
		}
	}
	return nil
}

// NormalizeURL 规范化URL
func NormalizeURL(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	// 如果没有协议,默认使用https
	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
