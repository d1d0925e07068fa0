package cli

import (
	"context"
	"io"
)

// Execute runs the CLI with args and returns the process exit code. Errors
// are written to stderr, or to stdout as a JSON response with --format json.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	verbose, _ := cmd.PersistentFlags().GetBool("verbose")
	out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: verbose}
	_ = out.Fail(err)
	return GetExitCode(err)
}
