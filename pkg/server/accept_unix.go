//go:build unix

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isTemporaryErrno(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ENOMEM,
		unix.ECONNABORTED, unix.ECONNRESET, unix.EINTR, unix.EAGAIN:
		return true
	}
	return false
}
