//go:build !darwin && !linux

package scanner

import (
	"os"
	"time"
)

// createTime falls back to the modification time.
func createTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}

func accessTime(os.FileInfo) time.Time {
	return time.Time{}
}
