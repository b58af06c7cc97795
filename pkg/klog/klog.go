// Package klog wraps a package-level zerolog logger for kooixc's
// operational tracing: module resolution, subprocess lifecycle, and CLI
// entry points. It mirrors intelligencedev-manifold's internal/agentd
// style of `log.Info().Str(...).Msg(...)` calls against the global
// zerolog logger rather than threading a *zerolog.Logger through every
// call site. Diagnostics (pkg/diagnostic) remain the compiler's actual
// error channel; this package is for operators watching a run, not for
// program-level error reporting.
package klog

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

// SetLevel adjusts the global minimum log level, e.g. from a --debug CLI
// flag or a kooix.yaml setting.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Module logs a resolved/loaded module file path during import loading.
func Module(path string, resolvedFrom string) {
	log.Debug().Str("path", path).Str("resolved_from", resolvedFrom).Msg("module resolved")
}

// ProcessSpawned logs a subprocess start in the native build shim.
func ProcessSpawned(tool string, args []string) {
	log.Info().Str("tool", tool).Strs("args", args).Msg("subprocess spawned")
}

// ProcessTimedOut logs a subprocess exceeding its deadline.
func ProcessTimedOut(tool string, timeoutMs int) {
	log.Warn().Str("tool", tool).Int("timeout_ms", timeoutMs).Msg("subprocess timed out")
}

// ProcessKilled logs a best-effort kill issued after a timeout.
func ProcessKilled(tool string, err error) {
	ev := log.Warn().Str("tool", tool)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("subprocess killed")
}

// ProcessReaped logs a subprocess's final exit status.
func ProcessReaped(tool string, exitCode int) {
	log.Debug().Str("tool", tool).Int("exit_code", exitCode).Msg("subprocess reaped")
}
