package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts per table",
		Long: `Show the number of rows in every table of the active engine.

Example:
  studydb stats
  studydb stats --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, rootOpts)
		},
	}
}

func runStats(cmd *cobra.Command, opts *RootOptions) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.store.Stats(commandContext(cmd))
	if err != nil {
		return storeError("failed to read stats", err)
	}
	if e.out.Format == "json" {
		return e.out.Success(stats)
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(e.out.Writer, "%-16s %d\n", name, stats[name])
	}
	return nil
}

// StatusResult is the output of the status command.
type StatusResult struct {
	Engine          string     `json:"engine"`
	SchemaVersion   int        `json:"schema_version"`
	MigrationNeeded bool       `json:"migration_needed"`
	Namespace       string     `json:"namespace"`
	Backend         string     `json:"backend"`
	Keys            []string   `json:"keys"`
	LastFlush       *FlushInfo `json:"last_flush,omitempty"`
}

// FlushInfo summarizes the last flush of this process.
type FlushInfo struct {
	Key   string `json:"key"`
	Bytes int    `json:"bytes"`
	At    string `json:"at"`
	Error string `json:"error,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine, schema version and migration state",
		Long: `Show which engine is active, the schema version, whether the document
engine transition is still outstanding, and the durable keys in use.

Example:
  studydb status`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts)
		},
	}
}

func runStatus(cmd *cobra.Command, opts *RootOptions) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := commandContext(cmd)

	version, err := e.store.SchemaVersion(ctx)
	if err != nil {
		return storeError("failed to read schema version", err)
	}
	needed, err := e.store.IsMigrationNeeded(ctx)
	if err != nil {
		return storeError("failed to read migration state", err)
	}
	keys, err := e.blob.Keys(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list blob keys", err)
	}

	result := StatusResult{
		Engine:          string(e.store.ActiveEngine()),
		SchemaVersion:   version,
		MigrationNeeded: needed,
		Namespace:       e.cfg.Namespace,
		Backend:         e.cfg.Backend,
		Keys:            keys,
	}
	if res, ok := e.store.LastFlush(); ok {
		info := &FlushInfo{Key: res.Key, Bytes: res.Bytes, At: res.At.Format(time.RFC3339)}
		if res.Err != nil {
			info.Error = res.Err.Error()
		}
		result.LastFlush = info
	}

	if e.out.Format == "json" {
		return e.out.Success(result)
	}
	fmt.Fprintf(e.out.Writer, "Engine:           %s\n", result.Engine)
	fmt.Fprintf(e.out.Writer, "Schema version:   %d\n", result.SchemaVersion)
	fmt.Fprintf(e.out.Writer, "Migration needed: %t\n", result.MigrationNeeded)
	fmt.Fprintf(e.out.Writer, "Backend:          %s\n", result.Backend)
	for _, k := range result.Keys {
		fmt.Fprintf(e.out.Writer, "  %s\n", k)
	}
	if result.LastFlush != nil && result.LastFlush.Error != "" {
		fmt.Fprintf(e.out.Writer, "Last flush failed: %s\n", result.LastFlush.Error)
	}
	return nil
}
