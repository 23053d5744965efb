package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/RecoveryAshes/urlwatcher/internal/utils"
	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// gzipMagic gzip数据的文件头
var gzipMagic = []byte{0x1f, 0x8b}

// decompressResponse 根据Content-Encoding解压响应体
// gzip通常已被Colly解压, 只有仍带gzip文件头时才再次解压
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		if !bytes.HasPrefix(body, gzipMagic) {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		// 标准deflate是zlib封装的, 部分服务器发送裸deflate
		if reader, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer reader.Close()
			if decompressed, err := io.ReadAll(reader); err == nil {
				return decompressed, nil
			}
		}

		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		// 未知编码,返回警告但仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// toUTF8 将响应体转换为UTF-8
// 已是合法UTF-8时原样返回; 否则按Content-Type和<meta>声明探测编码
func toUTF8(body []byte, contentType string) []byte {
	if utf8.Valid(body) {
		return body
	}

	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return body
	}

	converted, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return converted
}

// makeSnippet 截取响应体前limit字节用于日志
// 控制字符(含换行)替换为空格, 不截断多字节字符
func makeSnippet(body []byte, contentType string, limit int) string {
	if limit <= 0 || len(body) == 0 {
		return ""
	}

	// 只处理需要的前缀, 多取一些给多字节编码留余量
	head := body
	if len(head) > limit*4 {
		head = head[:limit*4]
	}
	if !utf8.Valid(body) {
		head = toUTF8(head, contentType)
	}
	text := string(head)

	return flattenControl(truncateBytes(text, limit))
}

// truncateBytes 按字节截断到不超过limit, 保持UTF-8完整
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// truncateRunes 按字符数截断
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// flattenControl 将控制字符替换为空格
func flattenControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}
