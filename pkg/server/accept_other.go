//go:build !unix

package server

// Without errno classification only timeouts are retried.
func isTemporaryErrno(error) bool {
	return false
}
