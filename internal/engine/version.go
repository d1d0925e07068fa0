package engine

// Version constants for durable formats.
const (
	// BaseSchemaVersion is the version of the schema script before any
	// registered migration runs.
	BaseSchemaVersion = 1

	// DocumentFormat is the version of the document engine image.
	DocumentFormat = 1

	// Version is the studydb release.
	Version = "0.1.0"
)
