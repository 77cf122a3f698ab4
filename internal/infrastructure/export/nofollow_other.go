//go:build !unix

package export

const openNoFollow = 0

func isSymlinkLoop(err error) bool {
	return false
}
