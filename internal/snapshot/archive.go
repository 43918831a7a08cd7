package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Archive 将临时快照移动到持久目录，文件名 run-map-<unixms>.jpg，返回 file:// URI
func Archive(tmpPath, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	dst := filepath.Join(dir, fmt.Sprintf("run-map-%d.jpg", now.UnixMilli()))
	if err := os.Rename(tmpPath, dst); err != nil {
		// 跨设备时退化为复制
		if err := copyFile(tmpPath, dst); err != nil {
			return "", fmt.Errorf("archive snapshot: %w", err)
		}
		os.Remove(tmpPath)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("resolve snapshot path: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
