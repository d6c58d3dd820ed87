//go:build !windows

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

// FreeSpace returns the bytes available to unprivileged users at path,
// or 0 when it cannot be determined.
func FreeSpace(path string) int64 {
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return 0
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0
	}

	return int64(fs.Bavail) * int64(fs.Bsize)
}
