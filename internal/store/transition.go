package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/record"
)

// IsMigrationNeeded reports whether the relational data still has to be
// carried over to the document engine: the completion marker is absent, or
// the document tables are empty while the relational tables hold data.
func (s *Store) IsMigrationNeeded(ctx context.Context) (bool, error) {
	if _, err := s.Handle(); err != nil {
		return false, err
	}

	_, marked, err := s.opts.Blob.Get(ctx, s.keys.Migrated)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.keys.Migrated, err)
	}
	if !marked {
		return true, nil
	}

	s.mu.Lock()
	rel, doc := s.rel, s.doc
	s.mu.Unlock()
	if !doc.Empty() {
		return false, nil
	}
	for _, m := range s.opts.Mappings {
		n, err := rel.Count(ctx, m.Source)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Migrate copies every mapped relational table into the document engine
// and, once everything is written and persisted, makes the document engine
// active. Rows are overwritten by key, so running it again re-derives the
// same documents without duplicating them. The relational engine is never
// modified.
//
// Failures are MIGRATION errors and leave the active engine unchanged.
// Concurrent calls share one run.
func (s *Store) Migrate(ctx context.Context) (bool, error) {
	if _, err := s.Handle(); err != nil {
		return false, err
	}
	_, err, _ := s.migrateGroup.Do("migrate", func() (any, error) {
		return nil, s.migrate(ctx)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) migrate(ctx context.Context) error {
	start := s.clock.Now()
	s.logger.Info("engine transition started", "from", engine.Relational, "to", engine.Document)

	data, err := s.transform(ctx)
	if err != nil {
		return s.migrationFailed("transform failed", err)
	}

	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return engine.NewNotReadyError("migrate")
	}
	if err := doc.PutAll(ctx, data); err != nil {
		return s.migrationFailed("document write failed", err)
	}

	image, err := doc.Serialize(ctx)
	if err != nil {
		return s.migrationFailed("cannot serialize documents", err)
	}
	if err := s.opts.Blob.Put(ctx, s.keys.Documents, image); err != nil {
		return s.migrationFailed("cannot persist documents", engine.NewWriteError(s.keys.Documents, err))
	}
	stamp := []byte(s.clock.Now().UTC().Format(time.RFC3339))
	if err := s.opts.Blob.Put(ctx, s.keys.Migrated, stamp); err != nil {
		return s.migrationFailed("cannot record completion", engine.NewWriteError(s.keys.Migrated, err))
	}

	if err := s.activate(ctx, engine.Document); err != nil {
		return s.migrationFailed("cannot switch engine", err)
	}

	rows := 0
	for _, r := range data {
		rows += len(r)
	}
	s.logger.Info("engine transition finished", "tables", len(data), "rows", rows,
		"elapsed", s.clock.Now().Sub(start))
	return nil
}

func (s *Store) migrationFailed(msg string, err error) error {
	s.logger.Error("engine transition failed; staying on current engine", "reason", msg, "error", err)
	return engine.NewMigrationError(msg, err)
}

// transform reads the mapped relational tables concurrently and converts
// their rows into documents.
func (s *Store) transform(ctx context.Context) (map[string][]record.Row, error) {
	s.mu.Lock()
	rel, doc := s.rel, s.doc
	s.mu.Unlock()
	if rel == nil || doc == nil {
		return nil, engine.NewNotReadyError("migrate")
	}

	var mu sync.Mutex
	out := make(map[string][]record.Row, len(s.opts.Mappings))

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range s.opts.Mappings {
		m := m
		g.Go(func() error {
			shape, err := doc.Table(gctx, m.Target)
			if err != nil {
				return err
			}
			rows, err := rel.ReadAll(gctx, m.Source)
			if err != nil {
				return err
			}
			docs := make([]record.Row, 0, len(rows))
			for i, row := range rows {
				d, err := m.Transform(shape, row)
				if err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				docs = append(docs, d)
			}

			mu.Lock()
			out[m.Target] = docs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SwitchEngine makes target the active engine. Switching to the document
// engine migrates first when the migration is outstanding; a failed
// migration is returned and the active engine stays as it was. Switching
// back to relational does not copy documents back.
func (s *Store) SwitchEngine(ctx context.Context, target engine.Kind) error {
	if _, err := engine.ParseKind(string(target)); err != nil {
		return err
	}
	if _, err := s.Handle(); err != nil {
		return err
	}
	if s.ActiveEngine() == target {
		return nil
	}

	if target == engine.Document {
		needed, err := s.IsMigrationNeeded(ctx)
		if err != nil {
			return engine.NewMigrationError("cannot check migration state", err)
		}
		if needed {
			_, err := s.Migrate(ctx)
			return err
		}
	}
	if err := s.activate(ctx, target); err != nil {
		return engine.NewMigrationError("cannot switch engine", err)
	}
	return nil
}

// activate persists the outgoing engine and the new selector, then flips
// the in-memory selector. Nothing changes in memory if a write fails.
func (s *Store) activate(ctx context.Context, target engine.Kind) error {
	s.cancelPending()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.phase != phaseReady {
		s.mu.Unlock()
		return engine.NewNotReadyError("switch")
	}
	current := s.activeLocked()
	s.mu.Unlock()

	if current.Kind() == target {
		return nil
	}

	// Pending changes to the outgoing engine are written before it stops
	// receiving saves.
	if res := s.persist(ctx, current); res.Err != nil {
		return res.Err
	}
	if err := s.opts.Blob.Put(ctx, s.keys.Engine, []byte(target)); err != nil {
		return engine.NewWriteError(s.keys.Engine, err)
	}

	s.mu.Lock()
	s.active = target
	s.mu.Unlock()
	s.logger.Info("active engine switched", "from", current.Kind(), "to", target)
	return nil
}
