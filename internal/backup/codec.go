package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/record"
)

// Codec exports and imports the content of one engine.
type Codec struct {
	// Engine is the active storage engine.
	Engine engine.Engine

	// Version is the schema version written to exports and the newest
	// version accepted on import.
	Version int

	// Now stamps exports. Defaults to time.Now.
	Now func() time.Time

	// Replace writes a validated bundle. Defaults to Engine.ReplaceAll of
	// the bundle data. It lets the caller bring bundles older than Version
	// up to date within the same atomic replace.
	Replace func(ctx context.Context, b *Bundle) error
}

// Export reads every user-data table into a Bundle.
func (c *Codec) Export(ctx context.Context) (*Bundle, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	tables, err := c.Engine.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	b := &Bundle{
		Version:   c.Version,
		Timestamp: now().UTC().Format(TimestampFormat),
		Data:      make(map[string][]record.Row, len(tables)),
	}
	for _, name := range tables {
		rows, err := c.Engine.ReadAll(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
		if rows == nil {
			rows = []record.Row{}
		}
		b.Data[name] = rows
	}
	return b, nil
}

// ExportAll returns the serialized bundle.
func (c *Codec) ExportAll(ctx context.Context) ([]byte, error) {
	b, err := c.Export(ctx)
	if err != nil {
		return nil, err
	}
	return Marshal(b)
}

// Validate checks b against the engine without modifying anything.
// Failures are BACKUP_FORMAT errors.
func (c *Codec) Validate(ctx context.Context, b *Bundle) error {
	if b.Version < engine.BaseSchemaVersion || b.Version > c.Version {
		return engine.NewBackupFormatError(
			fmt.Sprintf("bundle version %d not supported (accepted %d..%d)", b.Version, engine.BaseSchemaVersion, c.Version), nil)
	}
	for _, name := range b.Tables() {
		shape, err := c.Engine.Table(ctx, name)
		if err != nil {
			return engine.NewBackupFormatError(fmt.Sprintf("unknown table %q", name), err)
		}
		for i, row := range b.Data[name] {
			if err := shape.ValidateRow(row); err != nil {
				return engine.NewBackupFormatError(fmt.Sprintf("table %s row %d", name, i), err)
			}
		}
	}
	return nil
}

// ImportAll parses and validates data, then replaces every table named in
// it. Tables absent from the bundle are untouched. On any error the engine
// is left exactly as it was.
func (c *Codec) ImportAll(ctx context.Context, data []byte) (*Bundle, error) {
	b, err := Parse(data)
	if err != nil {
		return nil, engine.NewBackupFormatError("cannot parse bundle", err)
	}
	if err := c.Validate(ctx, b); err != nil {
		return nil, err
	}
	replace := c.Replace
	if replace == nil {
		replace = func(ctx context.Context, b *Bundle) error {
			return c.Engine.ReplaceAll(ctx, b.Data)
		}
	}
	if err := replace(ctx, b); err != nil {
		return nil, engine.NewBackupFormatError("bundle rejected by engine", err)
	}
	return b, nil
}

// SnapshotBlob returns the engine's raw serialized image.
func (c *Codec) SnapshotBlob(ctx context.Context) ([]byte, error) {
	return c.Engine.Serialize(ctx)
}
