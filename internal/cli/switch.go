package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/studydb/internal/engine"
)

// NewSwitchCommand creates the switch command.
func NewSwitchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <relational|document>",
		Short: "Change the active storage engine",
		Long: `Make relational or document the active engine.

Switching to document copies the relational data into the document engine
first if that has not happened yet. The relational data is never modified,
so a failed switch can simply be retried.

Example:
  studydb switch document`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{string(engine.Relational), string(engine.Document)},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(cmd, rootOpts, args[0])
		},
	}
}

func runSwitch(cmd *cobra.Command, opts *RootOptions, target string) error {
	kind, err := engine.ParseKind(target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid engine", err)
	}

	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := commandContext(cmd)

	previous := e.store.ActiveEngine()
	if err := e.store.SwitchEngine(ctx, kind); err != nil {
		return storeError("failed to switch engine", err)
	}

	if e.out.Format == "json" {
		return e.out.Success(map[string]string{"from": string(previous), "to": string(kind)})
	}
	if previous == kind {
		fmt.Fprintf(e.out.Writer, "Already on %s\n", kind)
		return nil
	}
	fmt.Fprintf(e.out.Writer, "Switched from %s to %s\n", previous, kind)
	return nil
}
