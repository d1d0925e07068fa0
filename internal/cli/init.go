package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult is the output of the init command.
type InitResult struct {
	DataDir       string         `json:"data_dir"`
	Backend       string         `json:"backend"`
	Engine        string         `json:"engine"`
	SchemaVersion int            `json:"schema_version"`
	Tables        map[string]int `json:"tables"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the store",
		Long: `Initialize the store: create the database from the schema on first use,
apply pending schema migrations, seed default rows and persist the snapshot.

Running init again is harmless.

Example:
  studydb init --data-dir ./studydb-data`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts)
		},
	}
}

func runInit(cmd *cobra.Command, opts *RootOptions) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := commandContext(cmd)

	if err := e.save(ctx); err != nil {
		return err
	}
	version, err := e.store.SchemaVersion(ctx)
	if err != nil {
		return storeError("failed to read schema version", err)
	}
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return storeError("failed to read stats", err)
	}

	result := InitResult{
		DataDir:       e.cfg.DataDir,
		Backend:       e.cfg.Backend,
		Engine:        string(e.store.ActiveEngine()),
		SchemaVersion: version,
		Tables:        stats,
	}
	if e.out.Format == "json" {
		return e.out.Success(result)
	}
	fmt.Fprintf(e.out.Writer, "Store ready (engine %s, schema version %d, backend %s)\n",
		result.Engine, result.SchemaVersion, result.Backend)
	return nil
}
