package notify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeHelper(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
}

func TestDispatchStopsAtFirstSuccess(t *testing.T) {
	dir := t.TempDir()
	writeHelper(t, dir, "10first", "#!/bin/sh\nexit 1\n")
	writeHelper(t, dir, "20second", "#!/bin/sh\nexit 0\n")
	writeHelper(t, dir, "30third", "#!/bin/sh\nexit 1\n")

	ok := Dispatch(dir, Session{Uid: 1000, Username: "alice", SessionID: "2", ParentPid: 500})
	require.True(t, ok)
}

func TestDispatchSkipsBackupAndDpkgFiles(t *testing.T) {
	dir := t.TempDir()
	writeHelper(t, dir, "10helper~", "#!/bin/sh\nexit 0\n")
	writeHelper(t, dir, "10helper.dpkg-new", "#!/bin/sh\nexit 0\n")

	ok := Dispatch(dir, Session{Uid: 1000, Username: "alice", SessionID: "2", ParentPid: 500})
	require.False(t, ok)
}

func TestDispatchAllFailReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	writeHelper(t, dir, "10helper", "#!/bin/sh\nexit 1\n")

	ok := Dispatch(dir, Session{Uid: 1000, Username: "alice", SessionID: "2", ParentPid: 500})
	require.False(t, ok)
}

func TestEnvForSetsAllFourVariables(t *testing.T) {
	env := envFor(Session{Uid: 1000, Username: "alice", SessionID: "2", ParentPid: 500})
	require.Contains(t, env, "NR_UID=1000")
	require.Contains(t, env, "NR_USERNAME=alice")
	require.Contains(t, env, "NR_SESSION=2")
	require.Contains(t, env, "NR_SESSPPID=500")
}
