package hookrun

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunSuccess(t *testing.T) {
	res, err := Run("/bin/echo", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", res.Stdout)
	require.Equal(t, 0, res.ExitCode)
}

func TestRunFailureReportsExitCode(t *testing.T) {
	res, err := Run("/bin/sh", "-c", "exit 3")
	require.Error(t, err)
	require.Equal(t, 3, res.ExitCode)
}

func TestFirstServiceToken(t *testing.T) {
	tok, ok := FirstServiceToken("● sshd.service - OpenSSH server daemon")
	require.True(t, ok)
	require.Equal(t, "sshd.service", tok)
}

func TestFirstServiceTokenNoMatch(t *testing.T) {
	_, ok := FirstServiceToken("no units here")
	require.False(t, ok)
}
