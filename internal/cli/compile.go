package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/eqsched/internal/compiler"
	"github.com/roach88/eqsched/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is a compiled rule set with its identity hash.
type CompilationResult struct {
	RuleSetHash string           `json:"ruleset_hash"`
	Rules       []ir.RuleSpec    `json:"rules"`
	Scheduler   ir.SchedulerSpec `json:"scheduler"`
	Runner      ir.RunnerSpec    `json:"runner"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE specs to a rule set",
		Long: `Compile CUE rule, scheduler and runner specs.

The compiler parses CUE files, validates the result and prints the compiled
rule set with its rule-set hash. Runs stored with the same hash used the
same rules.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	specs := loadResult.Specs
	if errs := compiler.Validate(specs); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	hash, err := ir.RuleSetHash(specs.Rules)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing rules: %v", err), nil)
	}
	for _, rule := range specs.Rules {
		formatter.VerboseLog("Compiled rule: %s", rule.Name)
	}

	result := &CompilationResult{
		RuleSetHash: hash,
		Rules:       specs.Rules,
		Scheduler:   specs.Scheduler,
		Runner:      specs.Runner,
	}

	if opts.Output != "" {
		if err := writeCompiledToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d rule(s)\n\n", len(result.Rules))

	fmt.Fprintln(formatter.Writer, "Rules:")
	for _, rule := range result.Rules {
		fmt.Fprintf(formatter.Writer, "  %s: %s → %s\n", rule.Name, rule.LHS, rule.RHS)
	}
	fmt.Fprintln(formatter.Writer)

	strategy := result.Scheduler.Strategy
	if strategy == "" {
		strategy = ir.StrategyDefault
	}
	fmt.Fprintf(formatter.Writer, "Scheduler: %s\n", strategy)
	fmt.Fprintf(formatter.Writer, "Rule set hash: %s\n", result.RuleSetHash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled rule set to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	return formatter.Fail(ExitCommandError, code, message, details)
}

// outputLoadError reports a LoadSpecs failure. Load errors are
// command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if formatter.Format != "json" && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
	}
	return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
}

// writeCompiledToFile writes the compilation result as indented JSON.
func writeCompiledToFile(result *CompilationResult, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rule set: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
