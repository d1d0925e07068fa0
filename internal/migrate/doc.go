// Package migrate runs versioned schema migrations against the relational
// engine.
//
// Each Migration is keyed by an integer version greater than the base schema
// version. Run applies pending migrations in ascending order; each one runs in
// its own transaction together with the insert of its marker row in
// schema_migrations, so a migration is either fully applied and marked or not
// applied at all. A marked version never runs again, and a pending version
// lower than the highest marker is refused.
//
// The database's PRAGMA user_version mirrors the highest marker.
package migrate
