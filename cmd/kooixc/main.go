// Command kooixc is the thin CLI shell around pkg/pipeline: subcommand
// dispatch, source/output file handling, and process exit codes only,
// mirroring minzc's cmd/minzc main.go cobra rootCmd/subcommand
// construction. Per spec.md's CLI non-goals, this file owns no compiler
// logic — only wiring into pkg/pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telagod/kooixc/pkg/config"
	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/klog"
	"github.com/telagod/kooixc/pkg/mir"
	"github.com/telagod/kooixc/pkg/native"
	"github.com/telagod/kooixc/pkg/pipeline"
	"github.com/telagod/kooixc/pkg/version"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsageErr = 2
)

var (
	outputPath string
	strict     bool
	debug      bool
	cfgPath    string
	cfg        config.Config
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:           "kooixc",
		Short:         "kooixc " + version.GetVersion() + " — the Kooix compiler core",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				klog.SetLevel("debug")
			}
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if cfg.StrictWarnings {
				strict = true
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "kooix.yaml", "project config file")
	root.PersistentFlags().BoolVar(&strict, "strict", false, "promote warnings to a failing exit code")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level operational logging")

	root.AddCommand(
		newCheckCmd(),
		newCheckModulesCmd(),
		newASTCmd(),
		newHIRCmd(),
		newMIRCmd(),
		newLLVMCmd(),
		newNativeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	return exitOK
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// decideExit prints every diagnostic rendered against src and returns the
// process exit code spec.md §7 assigns: 0 when clean, 1 when any error (or,
// under --strict, any warning) was reported.
func decideExit(src string, diags []diagnostic.Diagnostic) int {
	hasError, hasWarning := false, false
	for _, d := range diags {
		fmt.Println(d.Render(src))
		if d.Severity == diagnostic.Error {
			hasError = true
		} else {
			hasWarning = true
		}
	}
	if hasError || (strict && hasWarning) {
		return exitFailure
	}
	return exitOK
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "lex, parse, lower, and semantically analyze a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			_, diags := pipeline.Check(src)
			os.Exit(decideExit(src, diags))
			return nil
		},
	}
}

func newCheckModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-modules <entry>",
		Short: "resolve, normalize, and semantically analyze a file's import graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := args[0]
			_, diags := pipeline.CheckModules(entry)
			hasError, hasWarning := false, false
			for _, d := range diags {
				fmt.Println(d.Message)
				if d.Severity == diagnostic.Error {
					hasError = true
				} else {
					hasWarning = true
				}
			}
			code := exitOK
			if hasError || (strict && hasWarning) {
				code = exitFailure
			}
			os.Exit(code)
			return nil
		},
	}
}

func newASTCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast <file>",
		Short: "parse a file and print its syntax tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			program, diag := pipeline.ParseSource(src)
			if diag != nil {
				fmt.Println(diag.Render(src))
				os.Exit(exitFailure)
			}
			fmt.Printf("%#v\n", program)
			return nil
		},
	}
}

func newHIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hir <file>",
		Short: "parse and lower a file, printing a summary of the HIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			program, diag := pipeline.LowerSource(src)
			if diag != nil {
				fmt.Println(diag.Render(src))
				os.Exit(exitFailure)
			}
			printHIR(program)
			return nil
		},
	}
}

func printHIR(program *hir.Program) {
	fmt.Printf("capabilities: %d\n", len(program.Capabilities))
	fmt.Printf("records: %d\n", len(program.Records))
	fmt.Printf("enums: %d\n", len(program.Enums))
	fmt.Printf("functions: %d\n", len(program.Functions))
	for _, f := range program.Functions {
		fmt.Printf("  fn %s/%d -> %s\n", f.Name, len(f.Params), f.ReturnType.String())
	}
	fmt.Printf("workflows: %d\n", len(program.Workflows))
	for _, w := range program.Workflows {
		fmt.Printf("  workflow %s\n", w.Name)
	}
	fmt.Printf("agents: %d\n", len(program.Agents))
	for _, a := range program.Agents {
		fmt.Printf("  agent %s\n", a.Name)
	}
}

func newMIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mir <file>",
		Short: "check a file and print its lowered MIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			mirProgram, diags := pipeline.LowerMIR(src)
			code := decideExit(src, diags)
			if mirProgram != nil {
				printMIR(mirProgram)
			}
			os.Exit(code)
			return nil
		},
	}
}

func printMIR(program *mir.Program) {
	for _, fn := range program.Functions {
		fmt.Printf("function %s -> %s\n", fn.Name, fn.ReturnType.String())
		for _, b := range fn.Blocks {
			fmt.Printf("  %s: %d statement(s), terminator %T\n", b.Label, len(b.Statements), b.Terminator)
		}
	}
}

func newLLVMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llvm <file>",
		Short: "check, lower, and emit textual LLVM IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			out, diags := pipeline.EmitLLVM(src)
			code := decideExit(src, diags)
			if out != "" {
				if outputPath != "" {
					if err := os.WriteFile(outputPath, []byte(out), 0o644); err != nil {
						return err
					}
				} else {
					fmt.Print(out)
				}
			}
			os.Exit(code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write LLVM IR to this path instead of stdout")
	return cmd
}

func newNativeCmd() *cobra.Command {
	var (
		doRun     bool
		stdinPath string
		timeoutMs int
	)
	cmd := &cobra.Command{
		Use:   "native <file> [-- program-args...]",
		Short: "compile to a native executable via llc/clang, optionally running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			passthrough := args[1:]

			timeout := timeoutMs
			if timeout == 0 {
				timeout = cfg.Native.TimeoutMs
			}

			binaryPath, diags, buildErr := pipeline.BuildNative(src, pipeline.NativeBuildOptions{
				LLC:        cfg.Native.LLC,
				Clang:      cfg.Native.Clang,
				OutputPath: outputPath,
				TimeoutMs:  timeout,
			})
			code := decideExit(src, diags)
			if buildErr != nil {
				if buildErr.Kind != native.ErrDiagnostics {
					fmt.Fprintln(os.Stderr, buildErr.Error())
				}
				os.Exit(exitFailure)
			}
			if code != exitOK {
				os.Exit(code)
			}
			if !doRun {
				fmt.Println(binaryPath)
				os.Exit(exitOK)
			}

			var stdin []byte
			if stdinPath != "" && stdinPath != "-" {
				stdin, err = os.ReadFile(stdinPath)
				if err != nil {
					return err
				}
			}
			klog.ProcessSpawned(binaryPath, passthrough)
			result, runErr := native.Run(binaryPath, native.RunOptions{
				Args: passthrough, Stdin: stdin, TimeoutMs: timeout,
			})
			if runErr != nil {
				fmt.Fprintln(os.Stderr, runErr.Error())
				os.Exit(exitFailure)
			}
			fmt.Print(result.Stdout)
			if result.Stderr != "" {
				fmt.Fprint(os.Stderr, result.Stderr)
			}
			if result.TimedOut {
				os.Exit(exitFailure)
			}
			os.Exit(result.ExitCode)
			return nil
		},
	}
	cmd.Flags().BoolVar(&doRun, "run", false, "run the built binary after linking")
	cmd.Flags().StringVar(&stdinPath, "stdin", "", "path to feed as the run's stdin, or '-' for none")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "run deadline in milliseconds (0 uses kooix.yaml's default)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output binary path")
	cmd.Flags().SetInterspersed(false)
	return cmd
}
