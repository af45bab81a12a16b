package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "needrestart.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	d := Defaults()
	require.Equal(t, 1, d.Verbosity)
	require.Equal(t, "/etc/needrestart/hook.d", d.HookD)
	require.True(t, d.SendNotify)
	require.Equal(t, RestartInteractive, d.Restart)
	require.Equal(t, DetailAdvanced, d.UIMode)
	require.True(t, d.InterpScan)
	require.Equal(t, KernelHintsOn, d.KernelHints)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
restart: a
ui_mode: e
systemctl_combine: true
blacklist:
  - "^/usr/sbin/dhclient"
blacklist_rc:
  - "^systemd-"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, RestartAutomatic, cfg.Restart)
	require.Equal(t, DetailEasy, cfg.UIMode)
	require.True(t, cfg.SystemctlCombine)
	require.Len(t, cfg.BlacklistExe, 1)
	require.True(t, cfg.BlacklistedRC("systemd-journald"))
	require.False(t, cfg.BlacklistedRC("nginx"))
}

func TestLoadOverrideRcAndContAreConsulted(t *testing.T) {
	path := writeConfig(t, `
override_rc:
  "^nginx": false
  "^ssh": true
override_cont:
  "^scratch-.*": false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	forced, ok := cfg.OverrideForRC("nginx.service")
	require.True(t, ok)
	require.False(t, forced)

	forced, ok = cfg.OverrideForRC("sshd.service")
	require.True(t, ok)
	require.True(t, forced)

	_, ok = cfg.OverrideForRC("postgresql.service")
	require.False(t, ok)

	forced, ok = cfg.OverrideForCont("scratch-build-42")
	require.True(t, ok)
	require.False(t, forced)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "bogus_key: true\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidRegex(t *testing.T) {
	path := writeConfig(t, "blacklist:\n  - \"(unterminated\"\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
}
