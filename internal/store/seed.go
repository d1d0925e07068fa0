package store

import (
	"context"
	"fmt"

	"github.com/roach88/studydb/internal/record"
	"github.com/roach88/studydb/internal/relational"
)

// Seed is a row that must exist after initialization. It is inserted only if
// no row with the same primary key exists.
type Seed struct {
	Table string
	Row   record.Row
}

// DefaultSeeds returns the singleton progress row and default settings.
func DefaultSeeds() []Seed {
	setting := func(key, value string) Seed {
		return Seed{Table: "settings", Row: record.Row{"key": record.Text(key), "value": record.Text(value)}}
	}
	return []Seed{
		{Table: "progress", Row: record.Row{
			"id":          record.Int(1),
			"xp":          record.Int(0),
			"level":       record.Int(1),
			"streak_days": record.Int(0),
		}},
		setting("daily_goal_minutes", "30"),
		setting("session_length_minutes", "25"),
		setting("theme", "system"),
	}
}

// seed inserts absent seed rows and returns how many were inserted.
func seed(ctx context.Context, rel *relational.Engine, seeds []Seed) (int, error) {
	inserted := 0
	for _, sd := range seeds {
		shape, err := rel.Table(ctx, sd.Table)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", sd.Table, err)
		}
		var key record.Value = record.Null{}
		for _, c := range shape.Columns {
			if c.PrimaryKey {
				key = sd.Row.Get(c.Name)
				break
			}
		}
		exists, err := rel.Has(ctx, sd.Table, key)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", sd.Table, err)
		}
		if exists {
			continue
		}
		if err := rel.Put(ctx, sd.Table, sd.Row); err != nil {
			return inserted, fmt.Errorf("seed %s: %w", sd.Table, err)
		}
		inserted++
	}
	return inserted, nil
}
