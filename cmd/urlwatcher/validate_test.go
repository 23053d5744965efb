package main

import (
	"testing"
	"time"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		headers  []string
		wantErr  bool
	}{
		{"默认值", 0, nil, false},
		{"有效参数", 2 * time.Second, []string{"User-Agent: Bot/1.0"}, false},
		{"负间隔", -time.Second, nil, true},
		{"头部缺少冒号", 0, []string{"NoColon"}, true},
		{"头部名称为空", 0, []string{": value"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.interval, tt.headers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/a", "https://example.com/a"},
		{"http://example.com", "http://example.com"},
		{"example.com/path", "https://example.com/path"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.input)
		if err != nil {
			t.Errorf("NormalizeURL(%q) 返回错误: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, 期望 %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateURLs(t *testing.T) {
	if err := ValidateURLs([]string{"https://a.example", "http://b.example/x"}); err != nil {
		t.Errorf("有效URL不应报错: %v", err)
	}
	if err := ValidateURLs([]string{"https://a.example", "ftp://b.example"}); err == nil {
		t.Error("ftp协议应被拒绝")
	}
}
