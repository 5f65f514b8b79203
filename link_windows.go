//go:build windows

package pvinstall

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// osFileWriteAccess probes for write access by creating a hidden
// delete-on-close file, since ACL evaluation through stat alone is
// unreliable on Windows.
func osFileWriteAccess(path string) bool {
	probe, err := syscall.UTF16PtrFromString(filepath.Join(path, ".pvinstall-probe"))
	if err != nil {
		return false
	}
	handle, err := windows.CreateFile(
		probe,
		windows.GENERIC_WRITE|windows.GENERIC_READ,
		0,
		nil,
		windows.CREATE_NEW,
		windows.FILE_ATTRIBUTE_HIDDEN|windows.FILE_FLAG_DELETE_ON_CLOSE,
		0,
	)
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	return true
}

// osCreateDirLink creates a directory junction rather than a symlink:
// junctions need no SeCreateSymbolicLinkPrivilege, so the installer works
// from an unelevated shell.
func osCreateDirLink(source, target string) error {
	out, err := exec.Command("cmd", "/c", "mklink", "/J", target, source).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mklink /J: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func osRemoveDirLink(target string) error {
	return os.Remove(target)
}

// osReadDirLink treats both symlinks and junctions as links. Junctions are
// reparse points that Lstat reports as irregular, but Readlink still
// resolves them.
func osReadDirLink(path string, info os.FileInfo) (string, bool) {
	if info.Mode()&(os.ModeSymlink|os.ModeIrregular) == 0 {
		return "", false
	}
	dest, err := os.Readlink(path)
	if err != nil {
		return "", false
	}
	return dest, true
}
