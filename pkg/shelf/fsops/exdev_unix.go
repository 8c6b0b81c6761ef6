//go:build unix

package fsops

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isEXDEV(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
