//go:build linux || darwin

package pvinstall

import (
	"os"

	"golang.org/x/sys/unix"
)

func osFileWriteAccess(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

func osCreateDirLink(source, target string) error {
	return os.Symlink(source, target)
}

func osRemoveDirLink(target string) error {
	return os.Remove(target)
}

func osReadDirLink(path string, info os.FileInfo) (string, bool) {
	if info.Mode()&os.ModeSymlink == 0 {
		return "", false
	}
	dest, err := os.Readlink(path)
	if err != nil {
		return "", false
	}
	return dest, true
}
