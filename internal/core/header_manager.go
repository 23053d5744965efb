package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/RecoveryAshes/urlwatcher/internal/utils"
)

// DefaultUserAgent 默认User-Agent, 版本号在构建时注入
func DefaultUserAgent() string {
	return "urlwatcher/" + Version + " (+https://github.com/RecoveryAshes/urlwatcher)"
}

// HeaderManager 管理HTTP请求头部的生命周期
// 实现 HeaderProvider 接口
type HeaderManager struct {
	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// config 配置文件 fetch.headers 中的头部
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	// validator 头部验证器
	validator *utils.HeaderValidator

	// redactor 头部脱敏器
	redactor *utils.HeaderRedactor

	// validateOnce 头部只验证一次, 结果缓存在validateErr
	validateOnce sync.Once
	validateErr  error
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - configHeaders: 配置文件中的 fetch.headers
//   - cliHeaders: 命令行传递的头部字符串列表
//
// 返回:
//   - *HeaderManager: 头部管理器实例
//   - error: 如果命令行参数解析失败
func NewHeaderManager(configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(),
		config:    make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}

	// 将map[string]string转换为http.Header
	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	// 解析命令行头部
	if len(cliHeaders) > 0 {
		cliHeadersParsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = cliHeadersParsed
	} else {
		hm.cli = make(http.Header)
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认头部
// 显式声明Accept-Encoding后由抓取器负责解压
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent()},
		"Accept":          []string{"*/*"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// Validate 验证所有头部的合法性
// 验证顺序: 默认 → 配置 → 命令行
func (hm *HeaderManager) Validate() error {
	hm.validateOnce.Do(func() {
		// 验证默认头部 (理论上应该总是合法的)
		if err := hm.validator.Validate(hm.defaults); err != nil {
			utils.Errorf("默认头部验证失败: %v", err)
			hm.validateErr = err
			return
		}

		// 验证配置文件头部
		if err := hm.validator.Validate(hm.config); err != nil {
			utils.Errorf("配置文件头部验证失败: %v", err)
			hm.validateErr = err
			return
		}

		// 验证命令行头部
		if err := hm.validator.Validate(hm.cli); err != nil {
			utils.Errorf("命令行头部验证失败: %v", err)
			hm.validateErr = err
			return
		}

		if len(hm.config)+len(hm.cli) > 0 {
			utils.Debugf("自定义HTTP头部: %s", hm.redactor.RedactToString(hm.GetMergedHeaders()))
		}
	})
	return hm.validateErr
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
// 返回: 合并后的http.Header
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)

	// 1. 首先应用默认头部
	for name, values := range hm.defaults {
		result[name] = append([]string(nil), values...)
	}

	// 2. 配置文件覆盖默认
	for name, values := range hm.config {
		result[name] = append([]string(nil), values...)
	}

	// 3. 命令行覆盖配置文件
	for name, values := range hm.cli {
		result[name] = append([]string(nil), values...)
	}

	return result
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
// 返回: map[string]string 脱敏后的头部
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
// 返回当前有效的HTTP请求头部
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	// 1. 验证所有头部
	if err := hm.Validate(); err != nil {
		return nil, err
	}

	// 2. 合并并返回
	return hm.GetMergedHeaders(), nil
}
