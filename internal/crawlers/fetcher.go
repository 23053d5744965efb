package crawlers

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/RecoveryAshes/urlwatcher/internal/utils"
	"github.com/gocolly/colly/v2"
)

const (
	// colly.Context中保存响应和标题的键
	ctxKeyResponse = "urlwatcher.response"
	ctxKeyTitle    = "urlwatcher.title"
)

// Fetcher 单个URL的抓取器
// 总是返回非nil结果; 失败时Error为*models.FetchError
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) *models.FetchResult
}

// fetchedResponse 在回调和Fetch之间传递的响应数据
type fetchedResponse struct {
	statusCode  int
	contentType string
	body        []byte
	decodeErr   error
}

// StaticFetcher 基于Colly的HTTP抓取器
// 同步模式: 每次Fetch发起一个GET请求并等待完成
type StaticFetcher struct {
	collector *colly.Collector
	config    models.FetchConfig

	// HTTP头部提供者
	headerProvider models.HeaderProvider
}

// NewStaticFetcher 创建抓取器
// TLS证书校验保持开启; 重定向最多跟随config.MaxRedirects次
func NewStaticFetcher(config models.FetchConfig, headerProvider models.HeaderProvider) *StaticFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: config.Timeout,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(config.MaxBodySize),
	)
	c.IgnoreRobotsTxt = !config.RespectRobotsTxt

	// 设置传输层和总超时
	c.WithTransport(transport)
	c.SetRequestTimeout(config.Timeout)

	maxRedirects := config.MaxRedirects
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("重定向次数超过上限 %d", maxRedirects)
		}
		return nil
	})

	utils.Debugf("抓取器: 超时=%s, 最大重定向=%d, robots.txt=%v",
		config.Timeout, config.MaxRedirects, config.RespectRobotsTxt)

	sf := &StaticFetcher{
		collector:      c,
		config:         config,
		headerProvider: headerProvider,
	}

	sf.setupCallbacks()

	return sf
}

// setupCallbacks 设置Colly回调
func (sf *StaticFetcher) setupCallbacks() {
	// 处理响应: 解压后替换Body, 后续OnHTML解析的是解压后的内容
	sf.collector.OnResponse(func(r *colly.Response) {
		resp := &fetchedResponse{
			statusCode:  r.StatusCode,
			contentType: r.Headers.Get("Content-Type"),
		}

		body, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			resp.decodeErr = err
			body = r.Body
		}
		r.Body = body
		resp.body = body

		r.Ctx.Put(ctxKeyResponse, resp)
	})

	// 提取页面标题(仅HTML响应会触发)
	sf.collector.OnHTML("title", func(e *colly.HTMLElement) {
		if e.Response.Ctx.Get(ctxKeyTitle) != "" {
			return
		}
		title := flattenControl(strings.TrimSpace(e.Text))
		if title != "" {
			e.Response.Ctx.Put(ctxKeyTitle, truncateRunes(title, 80))
		}
	})

	sf.collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil {
			utils.Debugf("请求失败 [%s]: %v", r.Request.URL, err)
		}
	})
}

// Fetch 抓取单个URL
func (sf *StaticFetcher) Fetch(ctx context.Context, rawURL string) *models.FetchResult {
	start := time.Now()
	result := &models.FetchResult{URL: rawURL}

	fail := func(err *models.FetchError) *models.FetchResult {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(&models.FetchError{URL: rawURL, Kind: FetchErrKindFor(err), Cause: err})
	}

	if err := utils.ValidateURL(rawURL); err != nil {
		return fail(&models.FetchError{URL: rawURL, Kind: models.FetchErrInvalidURL, Cause: err})
	}

	var headers http.Header
	if sf.headerProvider != nil {
		h, err := sf.headerProvider.GetHeaders()
		if err != nil {
			return fail(&models.FetchError{URL: rawURL, Kind: models.FetchErrRequest, Cause: err})
		}
		headers = h.Clone()
	}

	reqCtx := colly.NewContext()
	if err := sf.collector.Request(http.MethodGet, rawURL, nil, reqCtx, headers); err != nil {
		return fail(classifyFetchError(rawURL, err))
	}

	resp, _ := reqCtx.GetAny(ctxKeyResponse).(*fetchedResponse)
	if resp == nil {
		return fail(&models.FetchError{URL: rawURL, Kind: models.FetchErrBody, Cause: errors.New("未收到响应")})
	}

	result.StatusCode = resp.statusCode
	if resp.statusCode < 200 || resp.statusCode > 299 {
		return fail(&models.FetchError{URL: rawURL, Kind: models.FetchErrHTTPStatus, StatusCode: resp.statusCode})
	}
	if resp.decodeErr != nil {
		return fail(&models.FetchError{URL: rawURL, Kind: models.FetchErrBody, Cause: resp.decodeErr})
	}

	result.Success = true
	result.Bytes = len(resp.body)
	result.Snippet = makeSnippet(resp.body, resp.contentType, sf.config.SnippetLength)
	result.Title = reqCtx.Get(ctxKeyTitle)
	result.Duration = time.Since(start)
	return result
}

// classifyFetchError 将底层错误归类为FetchError
func classifyFetchError(rawURL string, err error) *models.FetchError {
	return &models.FetchError{URL: rawURL, Kind: FetchErrKindFor(err), Cause: err}
}

// FetchErrKindFor 根据底层错误判断错误分类
func FetchErrKindFor(err error) models.FetchErrorKind {
	var (
		netErr       net.Error
		urlErr       *url.Error
		unknownCA    x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		certInvalid  x509.CertificateInvalidError
		tlsVerifyErr *tls.CertificateVerificationError
	)

	switch {
	case errors.Is(err, colly.ErrRobotsTxtBlocked):
		return models.FetchErrRobots
	case errors.Is(err, context.Canceled):
		return models.FetchErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return models.FetchErrTimeout
	case errors.As(err, &tlsVerifyErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostnameErr),
		errors.As(err, &certInvalid):
		return models.FetchErrTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.FetchErrTimeout
	case errors.Is(err, colly.ErrMissingURL):
		return models.FetchErrInvalidURL
	case errors.As(err, &urlErr) && urlErr.Op == "parse":
		return models.FetchErrInvalidURL
	default:
		return models.FetchErrNetwork
	}
}
