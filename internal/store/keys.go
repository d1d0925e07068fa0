package store

import "github.com/roach88/studydb/internal/engine"

// DefaultNamespace prefixes every durable key.
const DefaultNamespace = "studydb"

// DefaultLegacyKeys are snapshot keys written by earlier releases.
var DefaultLegacyKeys = []string{"sqliteDb"}

// Keys names the blobs a store reads and writes.
type Keys struct {
	Snapshot  string
	Documents string
	Engine    string
	Migrated  string
}

// KeysFor returns the keys under namespace ns.
func KeysFor(ns string) Keys {
	if ns == "" {
		ns = DefaultNamespace
	}
	return Keys{
		Snapshot:  ns + ".snapshot",
		Documents: ns + ".documents",
		Engine:    ns + ".engine",
		Migrated:  ns + ".engine-migrated",
	}
}

// ImageKey returns the key the given engine flushes to.
func (k Keys) ImageKey(kind engine.Kind) string {
	if kind == engine.Document {
		return k.Documents
	}
	return k.Snapshot
}
