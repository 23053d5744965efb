package core

import (
	"context"
	"testing"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/rs/zerolog"
)

func entriesOf(urls ...string) []models.QueueEntry {
	entries := make([]models.QueueEntry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, models.QueueEntry{URL: u})
	}
	return entries
}

func TestBatchFetcher_Hooks(t *testing.T) {
	fetcher := newFakeFetcher("https://b.example")
	bf := NewBatchFetcher(fetcher, 0, zerolog.Nop())

	var (
		startTotal int
		results    []string
	)
	bf.hooks = Hooks{
		OnBatchStart: func(tickID string, total int) { startTotal = total },
		OnResult:     func(r *models.FetchResult) { results = append(results, r.URL) },
	}

	outcome := bf.FetchBatch(context.Background(), "tick", "urls.txt",
		entriesOf("https://a.example", "https://b.example", "https://c.example"))

	if startTotal != 3 {
		t.Errorf("OnBatchStart 期望 3, 实际: %d", startTotal)
	}
	if len(results) != 3 {
		t.Errorf("OnResult 期望调用3次, 实际: %v", results)
	}
	if len(outcome.Leftovers) != 1 || outcome.Leftovers[0].URL != "https://b.example" || outcome.Leftovers[0].Attempts != 1 {
		t.Errorf("剩余条目错误: %+v", outcome.Leftovers)
	}
	if outcome.Summary.TotalBytes != 22 {
		t.Errorf("总字节数 期望 22, 实际: %d", outcome.Summary.TotalBytes)
	}
	if outcome.Summary.Requeued() != 1 {
		t.Errorf("重新入队数 期望 1, 实际: %d", outcome.Summary.Requeued())
	}
}

func TestBatchFetcher_RateLimit(t *testing.T) {
	fetcher := newFakeFetcher()
	// 每秒20个请求, 突发1个: 3个请求至少约100ms
	bf := NewBatchFetcher(fetcher, 20, zerolog.Nop())

	start := time.Now()
	outcome := bf.FetchBatch(context.Background(), "tick", "urls.txt",
		entriesOf("https://a.example", "https://b.example", "https://c.example"))
	elapsed := time.Since(start)

	if outcome.Summary.Succeeded != 3 {
		t.Errorf("期望3个成功, 实际: %+v", outcome.Summary)
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("速率限制未生效, 耗时: %v", elapsed)
	}
}

func TestBatchFetcher_CanceledBeforeStart(t *testing.T) {
	fetcher := newFakeFetcher()
	bf := NewBatchFetcher(fetcher, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := entriesOf("https://a.example", "https://b.example")
	entries[1] = entries[1].MarkFailed(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))

	outcome := bf.FetchBatch(ctx, "tick", "urls.txt", entries)
	if len(fetcher.Calls()) != 0 {
		t.Errorf("取消后不应发起抓取: %v", fetcher.Calls())
	}
	if outcome.Summary.Skipped != 2 || len(outcome.Leftovers) != 2 {
		t.Fatalf("期望2个条目原样写回: %+v", outcome)
	}
	if outcome.Leftovers[1] != entries[1] {
		t.Errorf("未处理的条目不应修改: %+v", outcome.Leftovers[1])
	}
}
