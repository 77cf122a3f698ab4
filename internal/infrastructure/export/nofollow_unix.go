//go:build unix

package export

import (
	"errors"

	"golang.org/x/sys/unix"
)

const openNoFollow = unix.O_NOFOLLOW

func isSymlinkLoop(err error) bool {
	return errors.Is(err, unix.ELOOP)
}
