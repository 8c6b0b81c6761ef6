//go:build linux

package scanner

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// createTime returns the birth time from statx when the filesystem
// records one, and the modification time otherwise.
func createTime(path string, info os.FileInfo) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err != nil || stx.Mask&unix.STATX_BTIME == 0 {
		return info.ModTime()
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}

func accessTime(info os.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}
	}
	return time.Unix(stat.Atim.Unix())
}
