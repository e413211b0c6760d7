package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, int, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	code, err := exitCode(root.ExecuteContext(context.Background()))
	return out.String(), code, err
}

func TestProfile_SetShowClear(t *testing.T) {
	req := require.New(t)
	t.Setenv("CHATANON_DATA_DIR", t.TempDir())

	out, code, err := runCLI(t, "profile", "set", "--gender", "Female", "--interests", "music, Art,music")
	req.NoError(err)
	req.Equal(exitOK, code)
	req.Contains(out, "Profile saved.")

	out, _, err = runCLI(t, "profile", "show")
	req.NoError(err)
	req.Contains(out, "female")
	req.Contains(out, "music, art")

	out, _, err = runCLI(t, "profile", "clear")
	req.NoError(err)
	req.Contains(out, "Profile cleared.")

	out, _, err = runCLI(t, "profile", "show")
	req.NoError(err)
	req.NotContains(out, "female")
}

func TestProfile_SetRejectsUnknownInterest(t *testing.T) {
	t.Setenv("CHATANON_DATA_DIR", t.TempDir())

	_, code, err := runCLI(t, "profile", "set", "--gender", "male", "--interests", "skydiving")
	require.Error(t, err)
	require.Equal(t, exitRuntime, code)
}

func TestRun_ConfigErrorExitCode(t *testing.T) {
	t.Setenv("CHATANON_DATA_DIR", t.TempDir())
	t.Setenv("RECONNECT_BASE_DELAY", "never")

	code, err := run([]string{"profile", "show"})
	require.Error(t, err)
	require.Equal(t, exitConfig, code)
}

func TestRun_ChatWithoutProfile(t *testing.T) {
	t.Setenv("CHATANON_DATA_DIR", t.TempDir())

	code, err := run([]string{"chat"})
	require.ErrorContains(t, err, "profile set")
	require.Equal(t, exitConfig, code)
}
