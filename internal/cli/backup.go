package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/studydb/internal/backup"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup bundle",
		Long: `Export every table of the active engine as a versioned JSON bundle.

Writes to stdout unless -o is given.

Example:
  studydb export -o backup.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, opts *RootOptions, output string) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.store.Export(commandContext(cmd))
	if err != nil {
		return storeError("failed to export", err)
	}
	data, err := backup.MarshalIndent(b)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode bundle", err)
	}

	if output == "" {
		_, err := fmt.Fprintln(e.out.Writer, string(data))
		return err
	}
	if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write bundle", err)
	}
	e.out.VerboseLog("exported %d tables to %s", len(b.Data), output)
	if e.out.Format == "json" {
		return e.out.Success(map[string]any{"file": output, "tables": len(b.Data), "version": b.Version})
	}
	fmt.Fprintf(e.out.Writer, "Exported %d tables to %s\n", len(b.Data), output)
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace tables from a JSON backup bundle",
		Long: `Import a bundle written by export. Every table in the bundle is replaced
as one atomic step; tables not in the bundle are kept. A malformed or
incompatible bundle is rejected before anything changes.

Example:
  studydb import backup.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootOpts, args[0])
		},
	}
}

func runImport(cmd *cobra.Command, opts *RootOptions, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read bundle", err)
	}

	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := commandContext(cmd)

	if err := e.store.ImportAll(ctx, data); err != nil {
		return storeError("import rejected", err)
	}
	if err := e.save(ctx); err != nil {
		return err
	}
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return storeError("failed to read stats", err)
	}
	if e.out.Format == "json" {
		return e.out.Success(stats)
	}
	fmt.Fprintf(e.out.Writer, "Imported %s\n", path)
	return nil
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the raw engine image to a file",
		Long: `Write the binary image of the active engine, the same bytes the store
persists, to a file.

Example:
  studydb snapshot -o studydb.sqlite`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, rootOpts, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runSnapshot(cmd *cobra.Command, opts *RootOptions, output string) error {
	e, err := openEnv(cmd, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	image, err := e.store.CreateSnapshotBlob(commandContext(cmd))
	if err != nil {
		return storeError("failed to create snapshot", err)
	}
	if err := os.WriteFile(output, image, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write snapshot", err)
	}
	if e.out.Format == "json" {
		return e.out.Success(map[string]any{"file": output, "bytes": len(image)})
	}
	fmt.Fprintf(e.out.Writer, "Wrote %d bytes to %s\n", len(image), output)
	return nil
}
