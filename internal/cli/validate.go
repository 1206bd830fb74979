package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reflux/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationIssue is the first problem CUE reported, with its position.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// ValidationResult is the JSON payload of the validate command.
type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Config *config.Config   `json:"config,omitempty"`
	Error  *ValidationIssue `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a CUE store config",
		Long: `Validate a store config against the built-in schema and print the
resolved values, defaults included.

Exit codes:
  0 - Config valid
  1 - Config invalid
  2 - Config not found

Examples:
  reflux validate ./reflux.cue
  reflux validate ./config/ --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(path)
	if err != nil {
		issue := issueFromError(err)
		if formatter.JSON() {
			if encErr := encodeValidation(formatter.Writer, ValidationResult{Valid: false, Error: issue}); encErr != nil {
				return encErr
			}
		} else {
			_ = formatter.Error(issue.Code, issue.Message, nil)
			if issue.Line > 0 {
				fmt.Fprintf(formatter.Writer, "  at %s:%d:%d\n", issue.File, issue.Line, issue.Column)
			}
			if issue.Count > 1 {
				fmt.Fprintf(formatter.Writer, "  (%d more error(s))\n", issue.Count-1)
			}
		}
		return configExitError(err)
	}

	if formatter.JSON() {
		return encodeValidation(formatter.Writer, ValidationResult{Valid: true, Config: cfg})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✓ Config valid")
	fmt.Fprintf(w, "  initial.count:     %d\n", cfg.Initial.Count)
	fmt.Fprintf(w, "  middleware:        %s\n", formatList(cfg.Middleware))
	fmt.Fprintf(w, "  max_depth:         %d\n", cfg.MaxDepth)
	fmt.Fprintf(w, "  journal:           %s\n", orNone(cfg.Journal, "(memory)"))
	fmt.Fprintf(w, "  metrics_namespace: %s\n", cfg.MetricsNamespace)
	return nil
}

func issueFromError(err error) *ValidationIssue {
	var ce *config.ConfigError
	if !errors.As(err, &ce) {
		return &ValidationIssue{Code: config.ErrCodeLoadFailed, Message: err.Error()}
	}
	issue := &ValidationIssue{Code: ce.Code, Message: ce.Message, Count: ce.Count}
	if ce.Pos.IsValid() {
		issue.File = ce.Pos.Filename()
		issue.Line = ce.Pos.Line()
		issue.Column = ce.Pos.Column()
	}
	return issue
}

func encodeValidation(w io.Writer, result ValidationResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Error != nil {
		response.Status = "error"
		response.Error = &CLIError{Code: result.Error.Code, Message: result.Error.Message}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func orNone(s, none string) string {
	if s == "" {
		return none
	}
	return s
}
