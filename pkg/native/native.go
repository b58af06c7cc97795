// Package native is the subprocess build/run shim described in spec.md §5
// and §7: it writes a lowered LLVM-IR module to a temp directory, invokes
// an external assembler/linker pair, and optionally runs the resulting
// binary with piped stdin under a wall-clock deadline. It is deliberately
// thin — sub-process supervision only, no compilation logic — mirroring
// the teacher's pkg/z80testing/e2e_harness.go shelling out to sjasmplus,
// generalized from a blocking cmd.Run() to a poll-with-deadline loop per
// sunholo-data-ailang's internal/eval_harness/runner.go TimedOut shape.
package native

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/klog"
)

// pollInterval is the fixed sleep between try_wait polls, per spec.md §9.
const pollInterval = 5 * time.Millisecond

// ErrorKind discriminates the NativeError variant set of spec.md §7.
type ErrorKind int

const (
	ErrDiagnostics ErrorKind = iota
	ErrIO
	ErrToolNotFound
	ErrCommandFailed
	ErrTimedOut
)

// Error is the native build/run shim's single error type, one of the five
// NativeError variants.
type Error struct {
	Kind        ErrorKind
	Diagnostics []diagnostic.Diagnostic
	Tool        string
	Stderr      string
	TimeoutMs   int
	Cause       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrDiagnostics:
		return fmt.Sprintf("native: %d diagnostics", len(e.Diagnostics))
	case ErrToolNotFound:
		return fmt.Sprintf("native: tool not found: %s", e.Tool)
	case ErrCommandFailed:
		return fmt.Sprintf("native: %s failed: %s", e.Tool, e.Stderr)
	case ErrTimedOut:
		return fmt.Sprintf("native: timed out after %dms", e.TimeoutMs)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("native: io error: %v", e.Cause)
		}
		return "native: io error"
	}
}

func diagnosticsError(ds []diagnostic.Diagnostic) *Error {
	return &Error{Kind: ErrDiagnostics, Diagnostics: ds}
}

func ioError(err error) *Error { return &Error{Kind: ErrIO, Cause: err} }

func toolNotFoundError(tool string) *Error { return &Error{Kind: ErrToolNotFound, Tool: tool} }

func commandFailedError(tool, stderr string) *Error {
	return &Error{Kind: ErrCommandFailed, Tool: tool, Stderr: stderr}
}

func timedOutError(timeoutMs int) *Error { return &Error{Kind: ErrTimedOut, TimeoutMs: timeoutMs} }

// BuildOptions configures the native backend's tool invocation. LLC and
// Clang default to "llc"/"clang" resolved against PATH.
type BuildOptions struct {
	LLC        string
	Clang      string
	OutputPath string
	TimeoutMs  int // 0 means no deadline on the build tool invocations
}

// RunResult is the outcome of running a built binary or a build tool,
// shaped after sunholo-data-ailang's eval_harness.RunResult.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// RunOptions configures Run's stdin/args/timeout.
type RunOptions struct {
	Stdin     []byte
	Args      []string
	TimeoutMs int // 0 means no deadline
}

// tempDirName mirrors the Rust original's kooixc-native-<pid>-<nanos>
// naming so a leftover directory is identifiable by operator and moment.
func tempDirName() string {
	return fmt.Sprintf("kooixc-native-%d-%d", os.Getpid(), time.Now().UnixNano())
}

// Build writes llvmIR to a fresh temp directory, invokes llc to produce an
// object file and clang to link it into opts.OutputPath, and removes the
// temp directory on success. On any failure the temp directory is left in
// place for inspection.
func Build(llvmIR string, opts BuildOptions) (string, *Error) {
	llc := opts.LLC
	if llc == "" {
		llc = "llc"
	}
	clang := opts.Clang
	if clang == "" {
		clang = "clang"
	}

	workDir := filepath.Join(os.TempDir(), tempDirName())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", ioError(err)
	}

	llFile := filepath.Join(workDir, "module.ll")
	if err := os.WriteFile(llFile, []byte(llvmIR), 0o644); err != nil {
		return "", ioError(err)
	}

	objFile := filepath.Join(workDir, "module.o")
	if err := runTool(llc, []string{"-filetype=obj", "-o", objFile, llFile}, workDir, opts.TimeoutMs); err != nil {
		return "", err
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(workDir, "a.out")
	}
	if err := runTool(clang, []string{"-o", outputPath, objFile}, workDir, opts.TimeoutMs); err != nil {
		return "", err
	}

	os.RemoveAll(workDir)
	return outputPath, nil
}

// Run executes the built binary at path with opts.Args, feeding
// opts.Stdin (fully written before polling begins) and enforcing
// opts.TimeoutMs if non-zero. A non-zero exit code is a normal RunResult,
// not an Error — only I/O failure or a missing binary report as errors.
// A timeout is not reported as an Error either: Run returns the RunResult
// with TimedOut set.
func Run(path string, opts RunOptions) (*RunResult, *Error) {
	if _, err := exec.LookPath(path); err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, toolNotFoundError(path)
		}
	}
	return supervise(path, opts.Args, "", opts.Stdin, opts.TimeoutMs)
}

// runTool invokes tool with args, treating a non-zero exit as
// CommandFailed, a missing binary as ToolNotFound, and a missed deadline
// as TimedOut.
func runTool(tool string, args []string, workDir string, timeoutMs int) *Error {
	resolved, lookErr := exec.LookPath(tool)
	if lookErr != nil {
		return toolNotFoundError(tool)
	}
	klog.ProcessSpawned(tool, args)

	result, suErr := supervise(resolved, args, workDir, nil, timeoutMs)
	if suErr != nil {
		return suErr
	}
	if result.TimedOut {
		return timedOutError(timeoutMs)
	}
	if result.ExitCode != 0 {
		return commandFailedError(tool, result.Stderr)
	}
	klog.ProcessReaped(tool, result.ExitCode)
	return nil
}

// supervise starts path with args in workDir, writes stdin fully before
// polling begins, then polls cmd.Wait() in pollInterval increments
// against a wall-clock deadline (when timeoutMs > 0). On deadline it
// issues a best-effort kill, re-checking for a race-won exit once before
// surfacing an I/O error, and returns TimedOut.
func supervise(path string, args []string, workDir string, stdin []byte, timeoutMs int) (*RunResult, *Error) {
	cmd := exec.Command(path, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	// Run in its own process group so a timeout kill reaps children the
	// built binary may have spawned, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if stdin != nil {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, ioError(err)
		}
		if err := cmd.Start(); err != nil {
			return nil, ioError(err)
		}
		if _, err := pipe.Write(stdin); err != nil {
			return nil, ioError(err)
		}
		_ = pipe.Close()
	} else if err := cmd.Start(); err != nil {
		return nil, ioError(err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline time.Time
	hasDeadline := timeoutMs > 0
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	for {
		if !hasDeadline {
			err := <-done
			return finishResult(&stdout, &stderr, err, false), nil
		}

		select {
		case err := <-done:
			return finishResult(&stdout, &stderr, err, false), nil
		case <-time.After(pollInterval):
			if time.Now().Before(deadline) {
				continue
			}
			klog.ProcessTimedOut(path, timeoutMs)
			killErr := killProcessGroup(cmd)
			klog.ProcessKilled(path, killErr)
			if killErr != nil {
				select {
				case <-done:
					return finishResult(&stdout, &stderr, nil, true), nil
				default:
					return nil, ioError(killErr)
				}
			}
			<-done
			return finishResult(&stdout, &stderr, nil, true), nil
		}
	}
}

// killProcessGroup sends SIGKILL to the whole process group cmd was
// started in, so a timed-out build tool or built binary can't leave
// orphaned children running past the deadline. Falls back to killing just
// cmd's own process if the group id can't be determined.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func finishResult(stdout, stderr *bytes.Buffer, waitErr error, timedOut bool) *RunResult {
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	return &RunResult{
		Stdout:   utf8Lossy(stdout.Bytes()),
		Stderr:   utf8Lossy(stderr.Bytes()),
		ExitCode: exitCode,
		TimedOut: timedOut,
	}
}

// utf8Lossy decodes b as UTF-8, substituting the replacement character for
// any invalid byte sequence rather than failing, matching subprocess
// output capture in spec.md §5.
func utf8Lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
