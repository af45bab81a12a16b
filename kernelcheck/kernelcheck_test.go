package kernelcheck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareVersionsNumeric(t *testing.T) {
	require.Equal(t, -1, compareVersions("5.10.0-21-amd64", "5.10.0-23-amd64"))
	require.Equal(t, 0, compareVersions("5.10.0-21-amd64", "5.10.0-21-amd64"))
	require.Equal(t, 1, compareVersions("5.10.0-23-amd64", "5.10.0-21-amd64"))
}

func TestCompareVersionsNotLexicographic(t *testing.T) {
	// Lexicographic comparison would rank "9" > "10"; numeric must not.
	require.True(t, compareVersions("5.10.0-9-amd64", "5.10.0-10-amd64") < 0)
}

func TestNewestInstalledPicksHighestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"vmlinuz-5.10.0-21-amd64", "vmlinuz-5.10.0-23-amd64", "vmlinuz-5.9.0-1-amd64"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644))
	}

	newest, ok := NewestInstalled(dir)
	require.True(t, ok)
	require.Equal(t, "5.10.0-23-amd64", newest)
}

func TestNewestInstalledNoneFound(t *testing.T) {
	dir := t.TempDir()
	_, ok := NewestInstalled(dir)
	require.False(t, ok)
}

// TestCompareVersionUpgradeAcrossBuildNumbers covers a version upgrade
// where the installed kernel's numeric components are strictly newer than
// the running one.
func TestCompareVersionUpgradeAcrossBuildNumbers(t *testing.T) {
	status := Compare("5.10.0-21-amd64", "5.10.0-23-amd64", true)
	require.Equal(t, VerUpgrade, status)
	require.Equal(t, 2, status.Int())
}

func TestCompareNoUpgrade(t *testing.T) {
	status := Compare("5.10.0-21-amd64", "5.10.0-21-amd64", true)
	require.Equal(t, NoUpgrade, status)
}

func TestCompareAbiUpgrade(t *testing.T) {
	status := Compare("5.10.0-21-amd64", "5.10.0-21-amd64-ext", true)
	require.Equal(t, AbiUpgrade, status)
}

func TestCompareUnknownWhenNothingInstalled(t *testing.T) {
	status := Compare("5.10.0-21-amd64", "", false)
	require.Equal(t, Unknown, status)
}
