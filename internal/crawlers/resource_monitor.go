package crawlers

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/urlwatcher/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
)

// DefaultMinFreeBytes 低于该剩余空间时认为磁盘不足 (16MB)
const DefaultMinFreeBytes = 16 * 1024 * 1024

// CheckQueueDisk 检查队列文件所在文件系统的剩余空间
// 队列目录不存在时向上查找最近的已存在目录
func CheckQueueDisk(queuePath string, minFree uint64) (*models.DiskStatus, error) {
	dir, err := existingDir(queuePath)
	if err != nil {
		return nil, err
	}

	usage, err := disk.Usage(dir)
	if err != nil {
		return nil, err
	}

	status := &models.DiskStatus{
		Path:        dir,
		Total:       usage.Total,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
		LowSpace:    usage.Free < minFree,
	}

	if status.LowSpace {
		log.Warn().
			Str("path", dir).
			Uint64("free", usage.Free).
			Msg("⚠️  队列目录剩余空间不足")
	} else {
		log.Debug().
			Str("path", dir).
			Msgf("队列目录剩余空间: %.2f MB", float64(usage.Free)/(1024*1024))
	}

	return status, nil
}

// existingDir 返回路径所在的最近已存在目录
func existingDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(abs)
	for {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fs.ErrNotExist
		}
		dir = parent
	}
}
