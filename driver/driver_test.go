package driver

import (
	"testing"

	"github.com/needrestart-go/needrestart/config"
	"github.com/needrestart-go/needrestart/procfs"
	"github.com/needrestart-go/needrestart/restartset"
	"github.com/stretchr/testify/require"
)

func cmdStrings(cmds []RestartCommand) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func TestBuildRestartCommandsSeparateThenInitScript(t *testing.T) {
	units := []restartset.Unit{
		{Kind: restartset.KindSystemdService, Name: "foo.service"},
		{Kind: restartset.KindSystemdService, Name: "bar.service"},
		{Kind: restartset.KindInitScript, Name: "legacy"},
	}

	cmds := buildRestartCommands(units, false)
	require.Equal(t, []string{
		"systemctl restart bar.service",
		"systemctl restart foo.service",
		"service legacy restart",
	}, cmdStrings(cmds))
}

func TestBuildRestartCommandsCombined(t *testing.T) {
	units := []restartset.Unit{
		{Kind: restartset.KindSystemdService, Name: "foo.service"},
		{Kind: restartset.KindSystemdService, Name: "bar.service"},
	}

	cmds := buildRestartCommands(units, true)
	require.Equal(t, []string{"systemctl restart bar.service foo.service"}, cmdStrings(cmds))
}

func TestBuildRestartCommandsEmpty(t *testing.T) {
	require.Nil(t, buildRestartCommands(nil, true))
}

func TestBuildRestartCommandsSystemdManagerIsDaemonReexec(t *testing.T) {
	units := []restartset.Unit{{Kind: restartset.KindSystemdManager}}

	cmds := buildRestartCommands(units, false)
	require.Equal(t, []string{"systemctl daemon-reexec"}, cmdStrings(cmds))
}

func TestBuildRestartCommandsSysVInitHasNoCommand(t *testing.T) {
	units := []restartset.Unit{{Kind: restartset.KindSysVInit}}
	require.Empty(t, buildRestartCommands(units, false))
}

func TestBuildRestartCommandsOrdersServicesThenManagerThenInitScripts(t *testing.T) {
	units := []restartset.Unit{
		{Kind: restartset.KindInitScript, Name: "zzz"},
		{Kind: restartset.KindSystemdManager},
		{Kind: restartset.KindSystemdService, Name: "nginx.service"},
	}

	cmds := buildRestartCommands(units, false)
	require.Equal(t, []string{
		"systemctl restart nginx.service",
		"systemctl daemon-reexec",
		"service zzz restart",
	}, cmdStrings(cmds))
}

func TestUnitConfirmedTrustsCandidateWithNoDbusConn(t *testing.T) {
	require.True(t, unitConfirmed(nil, "whatever.service"))
}

func TestSystemdServiceUnitWithNoUnitFileLeavesExecStartEmpty(t *testing.T) {
	u := systemdServiceUnit("definitely-not-installed-anywhere.service")
	require.Equal(t, restartset.KindSystemdService, u.Kind)
	require.Equal(t, "definitely-not-installed-anywhere.service", u.Name)
	require.Empty(t, u.ExecStart)
}

func TestSessionForUsesLowestPidAsParentPid(t *testing.T) {
	u := restartset.Unit{
		Kind:      restartset.KindUserSession,
		Uid:       1000,
		SessionID: "pts/3",
		Commands:  map[string][]int{"bash": {42, 7}, "tmux": {99}},
	}

	s := sessionFor(u)
	require.Equal(t, 1000, s.Uid)
	require.Equal(t, "pts/3", s.SessionID)
	require.Equal(t, 7, s.ParentPid)
}

func TestSessionForNoCommandsLeavesParentPidZero(t *testing.T) {
	u := restartset.Unit{Kind: restartset.KindUserSession, Uid: 1000, SessionID: "pts/3"}
	s := sessionFor(u)
	require.Equal(t, 0, s.ParentPid)
}

func TestDispatchNotificationsSkipsNonSessionUnits(t *testing.T) {
	units := []restartset.Unit{
		{Kind: restartset.KindSystemdService, Name: "nginx.service"},
	}
	succeeded := dispatchNotifications(config.Config{NotifyD: t.TempDir()}, units)
	require.Equal(t, 0, succeeded)
}

func TestPid1IndexByInitCandidateKeysByFname(t *testing.T) {
	snapshot := map[int]procfs.Record{
		1:    {Pid: 1, Ppid: 0, Fname: "systemd"},
		200:  {Pid: 200, Ppid: 1, Fname: "dockerd"},
		5000: {Pid: 5000, Ppid: 200, Fname: "app"},
	}

	idx := pid1IndexByInitCandidate(snapshot)
	require.Equal(t, 200, idx["dockerd"])
	_, ok := idx["app"]
	require.False(t, ok)
}
