package crawlers

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// maxLineSize 队列文件单行最大长度 (1MB)
const maxLineSize = 1024 * 1024

// URLQueue 基于文件的URL队列
// 职责: 队列文件的创建、取出并清空、追加和删除
//
// 所有读改写操作都在临界区内完成:
//   - 进程内: sync.Mutex
//   - 进程间: <queue>.lock 上的flock建议锁
type URLQueue struct {
	// 队列文件路径
	path string

	// 进程间文件锁
	fileLock *flock.Flock

	// 进程内互斥锁
	mu sync.Mutex
}

// NewURLQueue 创建URL队列实例
func NewURLQueue(path string) *URLQueue {
	return &URLQueue{
		path:     path,
		fileLock: flock.New(LockPath(path)),
	}
}

// LockPath 返回队列文件对应的锁文件路径
func LockPath(queuePath string) string {
	return queuePath + ".lock"
}

// Path 返回队列文件路径
func (q *URLQueue) Path() string {
	return q.path
}

// withLock 在临界区内执行fn
func (q *URLQueue) withLock(fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ensureDir(); err != nil {
		return err
	}

	if err := q.fileLock.Lock(); err != nil {
		return &models.QueueFileError{Op: "加锁", Path: q.path, Cause: err}
	}
	defer q.fileLock.Unlock()

	return fn()
}

// ensureDir 确保队列文件所在目录存在
func (q *URLQueue) ensureDir() error {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.QueueFileError{Op: "创建目录", Path: q.path, Cause: err}
	}
	return nil
}

// Ensure 确保队列文件存在(不存在则创建空文件),幂等
func (q *URLQueue) Ensure() error {
	return q.withLock(func() error {
		file, err := os.OpenFile(q.path, os.O_RDONLY|os.O_CREATE, 0644)
		if err != nil {
			return &models.QueueFileError{Op: "创建", Path: q.path, Cause: err}
		}
		return file.Close()
	})
}

// Drain 取出队列中的全部条目并清空文件
// 读取和清空在同一个临界区内完成; 读取失败时文件保持原样
//
// 返回的条目:
//   - 保持文件中的顺序
//   - 已跳过空行
//   - 已按URL去重
func (q *URLQueue) Drain() ([]models.QueueEntry, error) {
	var entries []models.QueueEntry

	err := q.withLock(func() error {
		file, err := os.OpenFile(q.path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return &models.QueueFileError{Op: "打开", Path: q.path, Cause: err}
		}
		defer file.Close()

		entries, err = readEntries(file, q.path)
		if err != nil {
			return &models.QueueFileError{Op: "读取", Path: q.path, Cause: err}
		}

		// 清空文件
		if err := file.Truncate(0); err != nil {
			return &models.QueueFileError{Op: "清空", Path: q.path, Cause: err}
		}
		if err := file.Sync(); err != nil {
			return &models.QueueFileError{Op: "同步", Path: q.path, Cause: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return models.DedupeEntries(entries), nil
}

// Append 将条目追加到队列文件末尾,每条一行
// 文件末尾缺少换行符时先补一个,避免与已有内容粘连
func (q *URLQueue) Append(entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, entry := range entries {
		buf.WriteString(entry.String())
		buf.WriteByte('\n')
	}

	return q.withLock(func() error {
		file, err := os.OpenFile(q.path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return &models.QueueFileError{Op: "打开", Path: q.path, Cause: err}
		}
		defer file.Close()

		needsNewline, err := missingTrailingNewline(file)
		if err != nil {
			return &models.QueueFileError{Op: "读取", Path: q.path, Cause: err}
		}

		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			return &models.QueueFileError{Op: "定位", Path: q.path, Cause: err}
		}

		data := buf.Bytes()
		if needsNewline {
			data = append([]byte{'\n'}, data...)
		}
		if _, err := file.Write(data); err != nil {
			return &models.QueueFileError{Op: "追加", Path: q.path, Cause: err}
		}
		if err := file.Sync(); err != nil {
			return &models.QueueFileError{Op: "同步", Path: q.path, Cause: err}
		}
		return nil
	})
}

// AppendURLs 以裸URL形式追加
func (q *URLQueue) AppendURLs(urls []string) error {
	entries := make([]models.QueueEntry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, models.QueueEntry{URL: u})
	}
	return q.Append(entries)
}

// Peek 读取队列内容但不清空
// 返回: 条目、文件是否存在、错误
func (q *URLQueue) Peek() ([]models.QueueEntry, bool, error) {
	var (
		entries []models.QueueEntry
		exists  bool
	)

	err := q.withLock(func() error {
		file, err := os.Open(q.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return &models.QueueFileError{Op: "打开", Path: q.path, Cause: err}
		}
		defer file.Close()

		exists = true
		entries, err = readEntries(file, q.path)
		if err != nil {
			return &models.QueueFileError{Op: "读取", Path: q.path, Cause: err}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return entries, exists, nil
}

// Remove 删除队列文件和锁文件,文件不存在时不报错
// 锁文件在持有flock时删除, 删除后才释放锁
func (q *URLQueue) Remove() error {
	return q.withLock(func() error {
		if err := os.Remove(q.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &models.QueueFileError{Op: "删除", Path: q.path, Cause: err}
		}
		if err := os.Remove(LockPath(q.path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &models.QueueFileError{Op: "删除锁文件", Path: q.path, Cause: err}
		}
		return nil
	})
}

// readEntries 逐行解析队列条目
// 超过maxLineSize的行被丢弃并记录警告, 不影响其余行
func readEntries(r io.Reader, path string) ([]models.QueueEntry, error) {
	entries := make([]models.QueueEntry, 0)
	reader := bufio.NewReaderSize(r, 64*1024)

	var (
		line    []byte
		tooLong bool
		lineNum int
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		// 一行结束
		lineNum++
		if tooLong {
			log.Warn().
				Str("path", path).
				Int("line", lineNum).
				Msgf("⚠️  丢弃超长行 (超过 %d 字节)", maxLineSize)
		} else if entry, extra, ok := models.ParseQueueLineExtra(string(line)); ok {
			if len(extra) > 0 {
				log.Warn().
					Str("path", path).
					Int("line", lineNum).
					Str("url", entry.URL).
					Strs("ignored", extra).
					Msg("⚠️  忽略URL之后无法识别的内容")
			}
			entries = append(entries, entry)
		}
		line = line[:0]
		tooLong = false

		if err != nil {
			break
		}
	}

	return entries, nil
}

// missingTrailingNewline 检查非空文件是否以换行符结尾
func missingTrailingNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
