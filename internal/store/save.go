package store

import (
	"context"
	"time"

	"github.com/roach88/studydb/internal/engine"
)

// FlushResult describes one attempt to persist the active engine.
type FlushResult struct {
	// Key is the blob written.
	Key string

	// Engine is the engine that was serialized.
	Engine engine.Kind

	// Bytes is the size of the image.
	Bytes int

	// At is when the attempt finished.
	At time.Time

	// Err is nil on success, otherwise a WRITE error (or NOT_READY).
	Err error
}

// OK reports whether the flush succeeded.
func (r FlushResult) OK() bool {
	return r.Err == nil
}

// ScheduleSave requests a flush after the debounce delay. A call within the
// delay of a previous one replaces it, so a burst of calls produces one
// flush reflecting the final state. Does nothing before Initialize.
func (s *Store) ScheduleSave() {
	if !s.Ready() {
		s.logger.Debug("save requested before initialization; ignored")
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.token++
	token := s.token
	s.timer = s.clock.AfterFunc(s.opts.Debounce, func() { s.fire(token) })
}

// fire runs a debounced flush unless a later ScheduleSave or Close has
// superseded it.
func (s *Store) fire(token uint64) {
	s.saveMu.Lock()
	if token != s.token {
		s.saveMu.Unlock()
		return
	}
	s.timer = nil
	s.saveMu.Unlock()

	s.flush(context.Background(), "debounced save")
}

// Flush cancels any pending debounced save and persists the active engine
// now.
func (s *Store) Flush(ctx context.Context) FlushResult {
	s.cancelPending()
	return s.flush(ctx, "explicit flush")
}

// LastFlush returns the result of the most recent flush attempt.
func (s *Store) LastFlush() (FlushResult, bool) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.lastFlush == nil {
		return FlushResult{}, false
	}
	return *s.lastFlush, true
}

// PendingSave reports whether a debounced save is scheduled.
func (s *Store) PendingSave() bool {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.timer != nil
}

func (s *Store) cancelPending() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.token++
}

// flush serializes the active engine and replaces its blob. Failures are
// logged and recorded; the next scheduled save writes the full state again.
func (s *Store) flush(ctx context.Context, reason string) FlushResult {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	ready := s.phase == phaseReady
	var eng engine.Engine
	if ready {
		eng = s.activeLocked()
	}
	s.mu.Unlock()

	if !ready {
		return FlushResult{At: s.clock.Now(), Err: engine.NewNotReadyError("flush")}
	}

	s.saveMu.Lock()
	retrying := s.retry
	s.saveMu.Unlock()

	res := s.persist(ctx, eng)
	if res.Err != nil {
		s.logger.Error("flush failed", "reason", reason, "key", res.Key, "error", res.Err)
	} else {
		if retrying {
			s.logger.Info("flush recovered after earlier failure", "key", res.Key)
		}
		s.logger.Debug("flushed", "reason", reason, "key", res.Key, "bytes", res.Bytes)
	}

	s.saveMu.Lock()
	s.retry = res.Err != nil
	s.lastFlush = &res
	s.saveMu.Unlock()
	return res
}

// persist writes eng's image to its key. Caller holds flushMu.
func (s *Store) persist(ctx context.Context, eng engine.Engine) FlushResult {
	key := s.keys.ImageKey(eng.Kind())
	res := FlushResult{Key: key, Engine: eng.Kind()}

	data, err := eng.Serialize(ctx)
	if err != nil {
		res.At = s.clock.Now()
		res.Err = engine.NewWriteError(key, err)
		return res
	}
	res.Bytes = len(data)
	if err := s.opts.Blob.Put(ctx, key, data); err != nil {
		res.Err = engine.NewWriteError(key, err)
	}
	res.At = s.clock.Now()
	return res
}
