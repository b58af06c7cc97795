package native

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunToolNotFound(t *testing.T) {
	_, err := Run("kooixc-definitely-not-a-real-binary", RunOptions{})
	require.NotNil(t, err)
	require.Equal(t, ErrToolNotFound, err.Kind)
}

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	result, err := Run("/bin/echo", RunOptions{Args: []string{"hello"}})
	require.Nil(t, err)
	require.Equal(t, 0, result.ExitCode)
	require.Contains(t, result.Stdout, "hello")
	require.False(t, result.TimedOut)
}

func TestRunPipesStdinFully(t *testing.T) {
	result, err := Run("/bin/cat", RunOptions{Stdin: []byte("piped input")})
	require.Nil(t, err)
	require.Equal(t, "piped input", result.Stdout)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	result, err := Run("/bin/sh", RunOptions{Args: []string{"-c", "exit 3"}})
	require.Nil(t, err)
	require.Equal(t, 3, result.ExitCode)
}

func TestRunTimesOutAndReportsTimedOut(t *testing.T) {
	result, err := Run("/bin/sleep", RunOptions{Args: []string{"5"}, TimeoutMs: 50})
	require.Nil(t, err)
	require.True(t, result.TimedOut)
}

func TestBuildFailsWithToolNotFoundWhenLLCMissing(t *testing.T) {
	_, err := Build("; empty module\n", BuildOptions{LLC: "kooixc-no-such-llc"})
	require.NotNil(t, err)
	require.Equal(t, ErrToolNotFound, err.Kind)
}
