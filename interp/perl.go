package interp

import (
	"path/filepath"
	"strings"
	"time"
)

// perlRecognizer recognizes perl interpreter processes. The original tool
// this spec is distilled from is itself a perl program invoked under
// /usr/bin/perl, which makes this recognizer a direct analogue of its own
// self-check.
type perlRecognizer struct{}

func init() {
	Register(perlRecognizer{})
}

func (perlRecognizer) Name() string { return "perl" }

func (perlRecognizer) Recognizes(pid int, exe string) bool {
	base := filepath.Base(exe)
	return base == "perl" || strings.HasPrefix(base, "perl5")
}

func (perlRecognizer) Files(procRoot string, pid int) map[string]time.Time {
	out := make(map[string]time.Time)

	args := readCmdline(procRoot, pid)
	for _, a := range args {
		if !strings.HasSuffix(a, ".pl") && !strings.HasSuffix(a, ".pm") {
			continue
		}
		if mtime, ok := fileMtime(a); ok {
			out[a] = mtime
		}
	}

	for _, suffix := range []string{".pl", ".pm"} {
		for path, mtime := range openFilesWithSuffix(procRoot, pid, suffix) {
			out[path] = mtime
		}
	}

	return out
}

func (perlRecognizer) SourceOf(procRoot string, pid int, exe string) (string, bool) {
	args := readCmdline(procRoot, pid)
	for _, a := range args {
		if strings.HasSuffix(a, ".pl") {
			return a, true
		}
	}
	return "", false
}
