package interp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	name       string
	recognizes bool
	files      map[string]time.Time
}

func (f fakeRecognizer) Name() string                  { return f.name }
func (f fakeRecognizer) Recognizes(int, string) bool    { return f.recognizes }
func (f fakeRecognizer) Files(string, int) map[string]time.Time {
	return f.files
}
func (f fakeRecognizer) SourceOf(string, int, string) (string, bool) { return "", false }

func TestCheckStaleWhenScriptNewerThanStart(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	bootTime := int64(1_000_000)
	// Script mtime is bootTime+10 (10 boot-relative seconds); process
	// started at boot+5s.
	Register(fakeRecognizer{
		name:       "fake",
		recognizes: true,
		files: map[string]time.Time{
			"/home/u/app.py": time.Unix(bootTime+10, 0),
		},
	})

	stale, matched := Check("/proc", 1, "/usr/bin/python3", 5, bootTime)
	require.True(t, stale)
	require.Equal(t, "fake", matched)
}

func TestCheckFreshWhenScriptOlderThanStart(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	bootTime := int64(1_000_000)
	Register(fakeRecognizer{
		name:       "fake",
		recognizes: true,
		files: map[string]time.Time{
			"/home/u/app.py": time.Unix(bootTime+2, 0),
		},
	})

	stale, _ := Check("/proc", 1, "/usr/bin/python3", 5, bootTime)
	require.False(t, stale)
}

func TestCheckNoRecognizerMatches(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	Register(fakeRecognizer{name: "fake", recognizes: false})

	stale, matched := Check("/proc", 1, "/usr/bin/foo", 5, 0)
	require.False(t, stale)
	require.Equal(t, "", matched)
}

func TestPythonRecognizerByExeName(t *testing.T) {
	r := pythonRecognizer{}
	require.True(t, r.Recognizes(0, "/usr/bin/python3.11"))
	require.False(t, r.Recognizes(0, "/usr/bin/nginx"))
}

func TestShellRecognizerByExeName(t *testing.T) {
	r := shellRecognizer{}
	require.True(t, r.Recognizes(0, "/bin/bash"))
	require.False(t, r.Recognizes(0, "/usr/bin/python3"))
}
