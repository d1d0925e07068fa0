package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/studydb/internal/blob"
	"github.com/roach88/studydb/internal/document"
	"github.com/roach88/studydb/internal/engine"
	"github.com/roach88/studydb/internal/migrate"
	"github.com/roach88/studydb/internal/relational"
)

//go:embed schema.sql
var schemaSQL string

//go:embed documents.cue
var documentsCUE string

// DefaultDebounce is the delay between the last ScheduleSave and its flush.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Store. Only Blob is required.
type Options struct {
	// Blob is the durable store snapshots are written to.
	Blob blob.Store

	// Namespace prefixes every durable key. Defaults to DefaultNamespace.
	Namespace string

	// LegacyKeys are renamed to the snapshot key at initialization.
	// Nil means DefaultLegacyKeys; use an empty slice for none.
	LegacyKeys []string

	// Schema is the base schema script. Defaults to the embedded schema.sql.
	Schema string

	// Migrations defaults to migrate.Default().
	Migrations *migrate.Registry

	// Seeds are the rows guaranteed after initialization. Nil means
	// DefaultSeeds(); use an empty slice for none.
	Seeds []Seed

	// Documents is the CUE source of the document shapes. Defaults to the
	// embedded documents.cue, with DocumentTables() and DefaultMappings().
	Documents      string
	DocumentTables []document.TableDef
	Mappings       []TableMapping

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// AutoMigrate runs the engine transition at the end of Initialize.
	AutoMigrate bool

	// Clock defaults to engine.SystemClock.
	Clock engine.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

type phase int

const (
	phaseIdle phase = iota
	phaseReady
	phaseFailed
)

// Store owns the active engine, the readiness state and the debounce timer.
// Safe for concurrent use.
type Store struct {
	opts   Options
	keys   Keys
	clock  engine.Clock
	logger *slog.Logger

	initGroup    singleflight.Group
	migrateGroup singleflight.Group

	mu      sync.Mutex
	phase   phase
	gen     uint64 // incremented by Close; stale init runs discard their result
	initErr error
	rel     *relational.Engine
	doc     *document.Engine
	active  engine.Kind

	saveMu    sync.Mutex
	timer     engine.Timer
	token     uint64
	retry     bool
	lastFlush *FlushResult

	// flushMu serializes flushes and makes Close wait for one in progress.
	flushMu sync.Mutex
}

// New creates a store. Nothing is read until Initialize.
func New(opts Options) (*Store, error) {
	if opts.Blob == nil {
		return nil, errors.New("store: blob store is required")
	}
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.LegacyKeys == nil {
		opts.LegacyKeys = DefaultLegacyKeys
	}
	if opts.Schema == "" {
		opts.Schema = schemaSQL
	}
	if opts.Migrations == nil {
		opts.Migrations = migrate.Default()
	}
	if opts.Seeds == nil {
		opts.Seeds = DefaultSeeds()
	}
	if opts.Documents == "" {
		opts.Documents = documentsCUE
		opts.DocumentTables = DocumentTables()
		opts.Mappings = DefaultMappings()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = engine.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Store{
		opts:   opts,
		keys:   KeysFor(opts.Namespace),
		clock:  opts.Clock,
		logger: opts.Logger.With("component", "store"),
		active: engine.Relational,
	}, nil
}

// Keys returns the durable keys the store uses.
func (s *Store) Keys() Keys {
	return s.keys
}

// Initialize brings the store to the ready state and returns the active
// engine. It is idempotent: once ready it returns the same engine at once,
// and concurrent callers share a single run.
//
// Failures are INITIALIZATION errors. A failure is sticky: every later call
// returns it until Close.
//
// The shared run does not stop when ctx is cancelled. A caller whose ctx ends
// first gets ctx.Err() and the run completes for everyone else.
func (s *Store) Initialize(ctx context.Context) (engine.Engine, error) {
	if eng, done, err := s.settled(); done {
		return eng, err
	}

	run := context.WithoutCancel(ctx)
	ch := s.initGroup.DoChan("initialize", func() (any, error) {
		if eng, done, err := s.settled(); done {
			return eng, err
		}
		return s.initialize(run)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(engine.Engine), nil
	}
}

// settled returns the outcome of a finished initialization.
func (s *Store) settled() (engine.Engine, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case phaseReady:
		return s.activeLocked(), true, nil
	case phaseFailed:
		return nil, true, s.initErr
	default:
		return nil, false, nil
	}
}

func (s *Store) initialize(ctx context.Context) (engine.Engine, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	start := s.clock.Now()
	s.logger.Info("initializing store", "namespace", s.opts.Namespace)

	rel, doc, active, dirty, err := s.open(ctx)
	if err != nil {
		s.logger.Error("store initialization failed", "error", err)
		s.mu.Lock()
		if s.gen == gen {
			s.phase = phaseFailed
			s.initErr = err
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		rel.Close()
		doc.Close()
		return nil, engine.NewInitializationError("store closed during initialization", nil)
	}
	s.rel, s.doc, s.active = rel, doc, active
	s.phase = phaseReady
	eng := s.activeLocked()
	s.mu.Unlock()

	if dirty {
		// The fresh or migrated database must survive a crash before the
		// first mutation.
		res := s.flush(ctx, "initial snapshot")
		if res.Err != nil {
			s.logger.Warn("initial snapshot not persisted; will retry on next save", "error", res.Err)
		}
	}

	s.logger.Info("store ready", "engine", active, "elapsed", s.clock.Now().Sub(start))

	if s.opts.AutoMigrate && active == engine.Relational {
		if _, err := s.Migrate(ctx); err != nil {
			s.logger.Warn("automatic engine transition failed; staying on relational", "error", err)
		} else {
			eng, _ = s.Handle()
		}
	}
	return eng, nil
}

// open runs the initialization steps and returns the engines, the active
// kind and whether the relational database changed.
func (s *Store) open(ctx context.Context) (*relational.Engine, *document.Engine, engine.Kind, bool, error) {
	if err := s.renameLegacy(ctx); err != nil {
		return nil, nil, "", false, engine.NewInitializationError("blob store unreadable", err)
	}

	snapshot, found, err := s.opts.Blob.Get(ctx, s.keys.Snapshot)
	if err != nil {
		return nil, nil, "", false, engine.NewInitializationError("blob store unreadable", err)
	}

	var rel *relational.Engine
	dirty := false
	if found {
		rel, err = relational.Load(ctx, snapshot)
		if err != nil {
			return nil, nil, "", false, engine.NewInitializationError("cannot load snapshot", err)
		}
		s.logger.Info("snapshot loaded", "key", s.keys.Snapshot, "bytes", len(snapshot))
	} else {
		rel, err = relational.Create(ctx, s.opts.Schema)
		if err != nil {
			return nil, nil, "", false, engine.NewInitializationError("cannot apply schema script", err)
		}
		s.logger.Info("database created from schema")
		dirty = true
	}

	runner := &migrate.Runner{Registry: s.opts.Migrations, Now: s.clock.Now, Logger: s.logger}
	applied, err := runner.Run(ctx, rel.DB())
	if err != nil {
		rel.Close()
		return nil, nil, "", false, engine.NewInitializationError("schema migration failed", err)
	}
	if len(applied) > 0 {
		dirty = true
	}

	seeded, err := seed(ctx, rel, s.opts.Seeds)
	if err != nil {
		rel.Close()
		return nil, nil, "", false, engine.NewInitializationError("cannot seed default rows", err)
	}
	if seeded > 0 {
		s.logger.Info("default rows seeded", "rows", seeded)
		dirty = true
	}

	doc, err := document.New(s.opts.Documents, s.opts.DocumentTables)
	if err != nil {
		rel.Close()
		return nil, nil, "", false, engine.NewInitializationError("cannot compile document shapes", err)
	}

	active, err := s.restoreSelector(ctx, doc)
	if err != nil {
		rel.Close()
		doc.Close()
		return nil, nil, "", false, err
	}
	return rel, doc, active, dirty, nil
}

// renameLegacy moves a snapshot stored under a legacy key to the current
// key. A legacy key left behind after the current key exists is deleted.
func (s *Store) renameLegacy(ctx context.Context) error {
	for _, legacy := range s.opts.LegacyKeys {
		if legacy == s.keys.Snapshot {
			continue
		}
		data, found, err := s.opts.Blob.Get(ctx, legacy)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		_, current, err := s.opts.Blob.Get(ctx, s.keys.Snapshot)
		if err != nil {
			return err
		}
		if !current {
			if err := s.opts.Blob.Put(ctx, s.keys.Snapshot, data); err != nil {
				return fmt.Errorf("rename %s: %w", legacy, err)
			}
			s.logger.Info("legacy snapshot key renamed", "from", legacy, "to", s.keys.Snapshot)
		}
		if err := s.opts.Blob.Delete(ctx, legacy); err != nil {
			return fmt.Errorf("delete %s: %w", legacy, err)
		}
	}
	return nil
}

// restoreSelector loads the stored document image, whichever engine is
// selected, and returns the persisted engine selector. Keeping the document
// tables loaded while relational is active means a later switch back finds
// the documents written before, not an empty engine.
func (s *Store) restoreSelector(ctx context.Context, doc *document.Engine) (engine.Kind, error) {
	raw, selected, err := s.opts.Blob.Get(ctx, s.keys.Engine)
	if err != nil {
		return "", engine.NewInitializationError("blob store unreadable", err)
	}
	kind := engine.Relational
	if selected {
		kind, err = engine.ParseKind(string(raw))
		if err != nil {
			s.logger.Warn("ignoring unknown engine selector", "value", string(raw))
			kind = engine.Relational
		}
	}

	image, found, err := s.opts.Blob.Get(ctx, s.keys.Documents)
	if err != nil {
		return "", engine.NewInitializationError("blob store unreadable", err)
	}
	if found {
		if err := doc.Load(ctx, image); err != nil {
			if kind == engine.Document {
				return "", engine.NewInitializationError("cannot load document image", err)
			}
			// The next transition rewrites it.
			s.logger.Warn("document image unreadable; starting with empty documents", "error", err)
		} else {
			s.logger.Info("document image loaded", "key", s.keys.Documents, "bytes", len(image))
		}
	}

	if kind == engine.Document && !found {
		s.logger.Warn("document engine selected but no document image stored; using relational")
		return engine.Relational, nil
	}
	return kind, nil
}

// Handle returns the active engine. Fails with NOT_READY before Initialize
// has completed.
func (s *Store) Handle() (engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseReady {
		return nil, engine.NewNotReadyError("handle")
	}
	return s.activeLocked(), nil
}

// Relational returns the relational engine for direct SQL access. It is
// available even when the document engine is active.
func (s *Store) Relational() (*relational.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseReady {
		return nil, engine.NewNotReadyError("relational")
	}
	return s.rel, nil
}

// ActiveEngine returns the kind of the engine serving reads and writes.
func (s *Store) ActiveEngine() engine.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Ready reports whether Initialize has completed successfully.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == phaseReady
}

func (s *Store) activeLocked() engine.Engine {
	if s.active == engine.Document {
		return s.doc
	}
	return s.rel
}

// Stats returns the row count of every table in the active engine.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	eng, err := s.Handle()
	if err != nil {
		return nil, err
	}
	tables, err := eng.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	stats := make(map[string]int, len(tables))
	for _, name := range tables {
		n, err := eng.Count(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		stats[name] = n
	}
	return stats, nil
}

// SchemaVersion returns the highest applied schema migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	rel, err := s.Relational()
	if err != nil {
		return 0, err
	}
	return migrate.CurrentVersion(ctx, rel.DB())
}

// Close cancels any pending save without flushing it, waits for a flush in
// progress, releases both engines and resets the store so the next
// Initialize starts fresh.
func (s *Store) Close() error {
	s.cancelPending()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	rel, doc := s.rel, s.doc
	s.rel, s.doc = nil, nil
	s.active = engine.Relational
	s.phase = phaseIdle
	s.initErr = nil
	s.gen++
	s.mu.Unlock()

	s.initGroup.Forget("initialize")

	s.saveMu.Lock()
	s.retry = false
	s.lastFlush = nil
	s.saveMu.Unlock()

	var errs []error
	if rel != nil {
		errs = append(errs, rel.Close())
	}
	if doc != nil {
		errs = append(errs, doc.Close())
	}
	return errors.Join(errs...)
}
