package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/record"
	"github.com/roach88/studydb/internal/relational"
)

// SessionAddOptions holds flags for the session add command.
type SessionAddOptions struct {
	*RootOptions
	Plan    string
	Topic   string
	Minutes int
	Notes   string

	// NewID allows overriding the id generator (for testing).
	// If nil, ids are UUIDv7.
	NewID func() string
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage study sessions",
	}
	cmd.AddCommand(NewSessionAddCommand(rootOpts))
	return cmd
}

// NewSessionAddCommand creates the session add command.
func NewSessionAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a study session",
		Long: `Record a study session in the active engine and persist it.

Example:
  studydb session add --plan p1 --topic "goroutines" --minutes 25`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionAdd(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "plan id (required)")
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "topic studied (required)")
	cmd.Flags().IntVar(&opts.Minutes, "minutes", 0, "minutes studied")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func runSessionAdd(cmd *cobra.Command, opts *SessionAddOptions) error {
	if opts.Minutes < 0 {
		return NewExitError(ExitCommandError, "--minutes must not be negative")
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	e, err := openEnv(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := commandContext(cmd)

	eng, err := e.store.Handle()
	if err != nil {
		return storeError("store not ready", err)
	}

	id := relational.NormalizeID("session", newID())
	started := time.Now().UTC().Format(time.RFC3339)
	table, row := sessionRow(eng.Kind(), id, opts, started)
	if err := eng.Put(ctx, table, row); err != nil {
		return WrapExitError(ExitFailure, "failed to add session", err)
	}
	e.store.ScheduleSave()
	if err := e.save(ctx); err != nil {
		return err
	}

	if e.out.Format == "json" {
		return e.out.Success(map[string]string{"id": id, "engine": string(eng.Kind())})
	}
	fmt.Fprintf(e.out.Writer, "Added session %s\n", id)
	return nil
}

// sessionRow builds the row for the active engine's session table.
func sessionRow(kind engine.Kind, id string, opts *SessionAddOptions, started string) (string, record.Row) {
	if kind == engine.Document {
		row := record.Row{
			"id":        record.Text(id),
			"planId":    record.Text(opts.Plan),
			"topic":     record.Text(opts.Topic),
			"minutes":   record.IntOf(opts.Minutes),
			"startedAt": record.Text(started),
		}
		if opts.Notes != "" {
			row["notes"] = record.Text(opts.Notes)
		}
		return "sessions", row
	}

	row := record.Row{
		"id":         record.Text(id),
		"plan_id":    record.Text(opts.Plan),
		"topic":      record.Text(opts.Topic),
		"minutes":    record.IntOf(opts.Minutes),
		"started_at": record.Text(started),
	}
	if opts.Notes != "" {
		row["notes"] = record.Text(opts.Notes)
	}
	return "study_sessions", row
}
