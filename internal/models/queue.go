package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FailureMarker 失败标记前缀,追加在URL之后
// 完整格式: "<url> #failed attempts=<n> last=<RFC3339>"
const FailureMarker = "#failed"

// QueueEntry 队列文件中的一行
// 用途:
//   - 描述待抓取的URL
//   - 记录历次失败的次数和最近一次失败时间
type QueueEntry struct {
	// URL 完整的URL字符串
	URL string

	// Attempts 已失败的次数
	//   - 0: 从未尝试过或用户手动添加的裸URL
	//   - n: 已连续失败n次
	Attempts int

	// LastFailure 最近一次失败时间(Attempts为0时为零值)
	LastFailure time.Time
}

// Failed 是否带有失败标记
func (e QueueEntry) Failed() bool {
	return e.Attempts > 0
}

// MarkFailed 返回记录了一次新失败的条目
// 标记被覆盖而不是累加,同一URL始终只占一行
func (e QueueEntry) MarkFailed(at time.Time) QueueEntry {
	return QueueEntry{
		URL:         e.URL,
		Attempts:    e.Attempts + 1,
		LastFailure: at.UTC().Truncate(time.Second),
	}
}

// String 序列化为队列文件中的一行(不含换行符)
func (e QueueEntry) String() string {
	if !e.Failed() {
		return e.URL
	}
	return fmt.Sprintf("%s %s attempts=%d last=%s",
		e.URL, FailureMarker, e.Attempts, e.LastFailure.UTC().Format(time.RFC3339))
}

// ParseQueueLine 解析队列文件中的一行
// 返回: 条目和是否为有效行(空行返回false)
//
// 解析规则:
//   - 第一个空白分隔的字段为URL
//   - 若紧跟FailureMarker,则解析 attempts= 和 last= 字段
//   - 无法识别的附加内容被忽略,不影响URL本身
func ParseQueueLine(line string) (QueueEntry, bool) {
	entry, _, ok := ParseQueueLineExtra(line)
	return entry, ok
}

// ParseQueueLineExtra 同ParseQueueLine, 额外返回被忽略的字段
// 调用方据此提示 "https://a https://b" 这类误写的行
func ParseQueueLineExtra(line string) (QueueEntry, []string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return QueueEntry{}, nil, false
	}

	entry := QueueEntry{URL: fields[0]}
	if len(fields) < 2 {
		return entry, nil, true
	}
	if fields[1] != FailureMarker {
		return entry, fields[1:], true
	}

	var ignored []string
	for _, field := range fields[2:] {
		key, value, _ := strings.Cut(field, "=")
		switch key {
		case "attempts":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				entry.Attempts = n
				continue
			}
		case "last":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				entry.LastFailure = t.UTC()
				continue
			}
		}
		ignored = append(ignored, field)
	}

	// 旧格式或被手工编辑过的标记: 至少记为失败一次
	if entry.Attempts == 0 {
		entry.Attempts = 1
	}

	return entry, ignored, true
}

// DedupeEntries 按URL去重,保留首次出现的位置
// 同一URL出现多次时取最大失败次数和最近失败时间
func DedupeEntries(entries []QueueEntry) []QueueEntry {
	index := make(map[string]int, len(entries))
	result := make([]QueueEntry, 0, len(entries))

	for _, entry := range entries {
		i, seen := index[entry.URL]
		if !seen {
			index[entry.URL] = len(result)
			result = append(result, entry)
			continue
		}

		if entry.Attempts > result[i].Attempts {
			result[i].Attempts = entry.Attempts
		}
		if entry.LastFailure.After(result[i].LastFailure) {
			result[i].LastFailure = entry.LastFailure
		}
	}

	return result
}
