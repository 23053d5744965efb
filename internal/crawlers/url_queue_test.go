package crawlers

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLog 将全局日志重定向到缓冲区, 测试结束后恢复
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func writeQueueFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入队列文件失败: %v", err)
	}
}

func readQueueFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取队列文件失败: %v", err)
	}
	return string(data)
}

func TestURLQueue_Ensure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "urls.txt")
	queue := NewURLQueue(path)

	// 幂等: 多次调用不报错也不清空内容
	if err := queue.Ensure(); err != nil {
		t.Fatalf("创建队列文件失败: %v", err)
	}
	writeQueueFile(t, path, "https://example.com\n")
	if err := queue.Ensure(); err != nil {
		t.Fatalf("重复创建失败: %v", err)
	}

	if got := readQueueFile(t, path); got != "https://example.com\n" {
		t.Errorf("Ensure不应修改已有内容, 实际 %q", got)
	}
}

func TestURLQueue_Drain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	writeQueueFile(t, path, strings.Join([]string{
		"https://example.com/a",
		"",
		"   ",
		"https://example.com/b #failed attempts=2 last=2026-10-19T08:00:00Z",
		"https://example.com/a",
		"https://example.com/c",
	}, "\n"))

	queue := NewURLQueue(path)
	entries, err := queue.Drain()
	if err != nil {
		t.Fatalf("取出失败: %v", err)
	}

	want := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	if len(entries) != len(want) {
		t.Fatalf("期望 %d 个条目, 实际 %d: %+v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i].URL != want[i] {
			t.Errorf("位置%d: 期望 %s, 实际 %s", i, want[i], entries[i].URL)
		}
	}
	if entries[1].Attempts != 2 {
		t.Errorf("失败标记应被解析, 实际 attempts=%d", entries[1].Attempts)
	}

	// 文件已被清空但仍存在
	if got := readQueueFile(t, path); got != "" {
		t.Errorf("取出后文件应为空, 实际 %q", got)
	}
}

func TestURLQueue_DrainSkipsOversizedLine(t *testing.T) {
	logs := captureLog(t)
	path := filepath.Join(t.TempDir(), "urls.txt")
	huge := "https://huge.example/" + strings.Repeat("x", 2*maxLineSize)
	writeQueueFile(t, path, "https://a.example\n"+huge+"\nhttps://b.example\n")

	queue := NewURLQueue(path)
	entries, err := queue.Drain()
	if err != nil {
		t.Fatalf("超长行不应导致取出失败: %v", err)
	}

	if len(entries) != 2 || entries[0].URL != "https://a.example" || entries[1].URL != "https://b.example" {
		t.Fatalf("期望 [a b], 实际 %+v", entries)
	}
	if got := readQueueFile(t, path); got != "" {
		t.Errorf("取出后文件应为空, 实际长度 %d", len(got))
	}
	if !strings.Contains(logs.String(), "丢弃超长行") {
		t.Errorf("应记录超长行警告, 日志: %s", logs.String())
	}

	// 下一轮队列不再卡住
	if err := queue.AppendURLs([]string{"https://c.example"}); err != nil {
		t.Fatalf("追加失败: %v", err)
	}
	entries, err = queue.Drain()
	if err != nil || len(entries) != 1 || entries[0].URL != "https://c.example" {
		t.Errorf("第二次取出: entries=%+v err=%v", entries, err)
	}
}

func TestURLQueue_DrainWarnsExtraFields(t *testing.T) {
	logs := captureLog(t)
	path := filepath.Join(t.TempDir(), "urls.txt")
	writeQueueFile(t, path, "https://a.example https://b.example\nhttps://c.example\n")

	entries, err := NewURLQueue(path).Drain()
	if err != nil {
		t.Fatalf("取出失败: %v", err)
	}
	if len(entries) != 2 || entries[0].URL != "https://a.example" {
		t.Fatalf("期望2个条目且首个为a, 实际 %+v", entries)
	}

	out := logs.String()
	if !strings.Contains(out, "https://b.example") || !strings.Contains(out, `"line":1`) {
		t.Errorf("应警告第1行被忽略的内容, 日志: %s", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("只有第1行应产生警告, 日志: %s", out)
	}
}

func TestURLQueue_DrainMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	queue := NewURLQueue(path)

	entries, err := queue.Drain()
	if err != nil {
		t.Fatalf("取出失败: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("期望0个条目, 实际 %d", len(entries))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("队列文件应被创建: %v", err)
	}
}

func TestURLQueue_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	queue := NewURLQueue(path)

	// 已有内容缺少结尾换行
	writeQueueFile(t, path, "https://example.com/manual")

	failedAt := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	err := queue.Append([]models.QueueEntry{
		models.QueueEntry{URL: "https://example.com/a"}.MarkFailed(failedAt),
		{URL: "https://example.com/b"},
	})
	if err != nil {
		t.Fatalf("追加失败: %v", err)
	}

	want := "https://example.com/manual\n" +
		"https://example.com/a #failed attempts=1 last=2026-10-19T08:00:00Z\n" +
		"https://example.com/b\n"
	if got := readQueueFile(t, path); got != want {
		t.Errorf("期望\n%s\n实际\n%s", want, got)
	}

	// 空列表不写入
	if err := queue.Append(nil); err != nil {
		t.Fatalf("追加空列表失败: %v", err)
	}
	if got := readQueueFile(t, path); got != want {
		t.Errorf("空追加不应修改文件")
	}
}

func TestURLQueue_PeekAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	queue := NewURLQueue(path)

	entries, exists, err := queue.Peek()
	if err != nil || exists || len(entries) != 0 {
		t.Fatalf("文件不存在时: entries=%v exists=%v err=%v", entries, exists, err)
	}

	if err := queue.AppendURLs([]string{"https://example.com/a", "https://example.com/b"}); err != nil {
		t.Fatalf("追加失败: %v", err)
	}

	entries, exists, err = queue.Peek()
	if err != nil || !exists || len(entries) != 2 {
		t.Fatalf("Peek结果错误: entries=%v exists=%v err=%v", entries, exists, err)
	}

	// Peek不消费
	if got := readQueueFile(t, path); !strings.Contains(got, "https://example.com/a") {
		t.Errorf("Peek不应清空文件: %q", got)
	}

	if err := queue.Remove(); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("队列文件应已删除: %v", err)
	}
	if _, err := os.Stat(LockPath(path)); !os.IsNotExist(err) {
		t.Errorf("锁文件应已删除: %v", err)
	}

	// 幂等
	if err := queue.Remove(); err != nil {
		t.Errorf("重复删除不应报错: %v", err)
	}
}

func TestURLQueue_ConcurrentAppendAndDrain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	writer := NewURLQueue(path)
	reader := NewURLQueue(path)

	const total = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			url := "https://example.com/" + strconv.Itoa(i)
			if err := writer.AppendURLs([]string{url}); err != nil {
				t.Errorf("追加失败: %v", err)
				return
			}
		}
	}()

	seen := make(map[string]bool)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drainOnce := func() {
		entries, err := reader.Drain()
		if err != nil {
			t.Fatalf("取出失败: %v", err)
		}
		for _, e := range entries {
			if seen[e.URL] {
				t.Errorf("URL被重复取出: %s", e.URL)
			}
			seen[e.URL] = true
		}
	}

	for {
		select {
		case <-done:
			drainOnce()
			if len(seen) != total {
				t.Errorf("期望取出 %d 个URL, 实际 %d (存在丢失)", total, len(seen))
			}
			return
		default:
			drainOnce()
		}
	}
}
