// Package interp implements a pluggable interpreter registry. Recognizers
// self-register at init time in a priority-ordered, explicit compile-time
// table rather than through dynamic plug-in discovery.
package interp

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Recognizer is the capability set a language-runtime plug-in implements.
type Recognizer interface {
	// Name identifies the recognizer for logging.
	Name() string

	// Recognizes reports whether pid (with resolved executable exe) is
	// an instance of this interpreter.
	Recognizes(pid int, exe string) bool

	// Files returns the script paths pid currently has loaded, mapped
	// to each file's on-disk mtime.
	Files(procRoot string, pid int) map[string]time.Time

	// SourceOf optionally returns the primary script a language
	// runtime is executing. Returns ok=false when not applicable. The
	// service resolver does not call it; units are named from the
	// interpreter's own exe.
	SourceOf(procRoot string, pid int, exe string) (path string, ok bool)
}

var registry []Recognizer

// Register adds a recognizer to the priority-ordered table. Intended to be
// called from package init() by each concrete recognizer implementation.
func Register(r Recognizer) {
	registry = append(registry, r)
}

// Registered returns the recognizers currently registered, in priority
// order (first registered, first tried).
func Registered() []Recognizer {
	out := make([]Recognizer, len(registry))
	copy(out, registry)
	return out
}

// Check finds the first recognizer whose Recognizes returns true, gathers
// its files, and reports whether any file's mtime is newer than
// startTimeSeconds (boot-relative, same clock basis as the process start
// time).
func Check(procRoot string, pid int, exe string, startTimeSeconds float64, bootTime int64) (stale bool, matched string) {
	for _, r := range registry {
		if !r.Recognizes(pid, exe) {
			continue
		}

		files := r.Files(procRoot, pid)
		for _, mtime := range files {
			if mtimeBootRelativeSeconds(mtime, bootTime) > startTimeSeconds {
				return true, r.Name()
			}
		}
		return false, r.Name()
	}

	return false, ""
}

func mtimeBootRelativeSeconds(mtime time.Time, bootTime int64) float64 {
	return float64(mtime.Unix() - bootTime)
}

// readCmdline returns the argv of pid split on NUL bytes.
func readCmdline(procRoot string, pid int) []string {
	b, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return nil
	}
	parts := strings.Split(strings.TrimRight(string(b), "\x00"), "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fileMtime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
