package container

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCgroup(t *testing.T, procRoot string, pid int, contents string) {
	t.Helper()
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup"), []byte(contents), 0o644))
}

func TestCgroupLooksContainerizedDocker(t *testing.T) {
	root := t.TempDir()
	writeCgroup(t, root, 5, "1:name=systemd:/docker/abcdef1234\n")
	require.True(t, cgroupLooksContainerized(root, 5))
}

func TestCgroupLooksContainerizedHostUnit(t *testing.T) {
	root := t.TempDir()
	writeCgroup(t, root, 5, "1:name=systemd:/system.slice/sshd.service\n")
	require.False(t, cgroupLooksContainerized(root, 5))
}

func TestEnumerateOnlyStaleContainers(t *testing.T) {
	initPids := map[string]int{"web": 100, "db": 200}
	stale := map[int]bool{100: true, 200: false}

	out := Enumerate(initPids, func(pid int) bool { return stale[pid] })
	require.Len(t, out, 1)
	require.Contains(t, out, "web")
}
