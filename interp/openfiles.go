package interp

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// openFilesWithSuffix walks /proc/<pid>/fd, resolving each descriptor's
// symlink target and returning the ones matching suffix together with
// their on-disk mtime. This catches scripts an interpreter has open
// (e.g. via require/import) that don't appear on its command line.
func openFilesWithSuffix(procRoot string, pid int, suffix string) map[string]time.Time {
	out := make(map[string]time.Time)

	fdDir := filepath.Join(procRoot, strconv.Itoa(pid), "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return out
	}

	for _, entry := range entries {
		target, err := os.Readlink(filepath.Join(fdDir, entry.Name()))
		if err != nil {
			continue
		}
		if !strings.HasSuffix(target, suffix) {
			continue
		}
		if mtime, ok := fileMtime(target); ok {
			out[target] = mtime
		}
	}

	return out
}
