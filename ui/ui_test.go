package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineFrontendYes(t *testing.T) {
	f := NewLineFrontend(strings.NewReader("y\n"), &bytes.Buffer{})
	require.True(t, f.Confirm("restart nginx?", false))
}

func TestLineFrontendNo(t *testing.T) {
	f := NewLineFrontend(strings.NewReader("no\n"), &bytes.Buffer{})
	require.False(t, f.Confirm("restart nginx?", true))
}

func TestLineFrontendEmptyLineUsesDefault(t *testing.T) {
	f := NewLineFrontend(strings.NewReader("\n"), &bytes.Buffer{})
	require.True(t, f.Confirm("restart nginx?", true))
	f2 := NewLineFrontend(strings.NewReader("\n"), &bytes.Buffer{})
	require.False(t, f2.Confirm("restart nginx?", false))
}

func TestLineFrontendEOFUsesDefault(t *testing.T) {
	f := NewLineFrontend(strings.NewReader(""), &bytes.Buffer{})
	require.True(t, f.Confirm("restart nginx?", true))
}

func TestAutoFrontendIgnoresInput(t *testing.T) {
	f := AutoFrontend{Answer: false}
	require.False(t, f.Confirm("restart nginx?", true))
}
