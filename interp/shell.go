package interp

import (
	"path/filepath"
	"strings"
	"time"
)

// shellRecognizer recognizes shell interpreters (bash, dash, sh) running
// a script file named on their command line.
type shellRecognizer struct{}

func init() {
	Register(shellRecognizer{})
}

func (shellRecognizer) Name() string { return "shell" }

var shellExeNames = map[string]bool{
	"bash": true,
	"dash": true,
	"sh":   true,
	"ksh":  true,
	"zsh":  true,
}

func (shellRecognizer) Recognizes(pid int, exe string) bool {
	return shellExeNames[filepath.Base(exe)]
}

func (shellRecognizer) Files(procRoot string, pid int) map[string]time.Time {
	out := make(map[string]time.Time)

	args := readCmdline(procRoot, pid)
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if !strings.HasSuffix(a, ".sh") {
			continue
		}
		if mtime, ok := fileMtime(a); ok {
			out[a] = mtime
		}
	}

	return out
}

func (shellRecognizer) SourceOf(procRoot string, pid int, exe string) (string, bool) {
	args := readCmdline(procRoot, pid)
	for _, a := range args {
		if !strings.HasPrefix(a, "-") && strings.HasSuffix(a, ".sh") {
			return a, true
		}
	}
	return "", false
}
