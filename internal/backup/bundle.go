package backup

import (
	"fmt"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/roach88/studydb/internal/record"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Bundle is the logical content of every user-data table.
type Bundle struct {
	Version   int                     `json:"version"`
	Timestamp string                  `json:"timestamp"`
	Data      map[string][]record.Row `json:"data"`
}

// Time parses the bundle timestamp.
func (b *Bundle) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, b.Timestamp)
}

// Tables returns the names present in the bundle in sorted order.
func (b *Bundle) Tables() []string {
	names := make([]string, 0, len(b.Data))
	for name := range b.Data {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// wireBundle detects absent fields.
type wireBundle struct {
	Version   *int                    `json:"version"`
	Timestamp *string                 `json:"timestamp"`
	Data      map[string][]record.Row `json:"data"`
}

// Parse decodes and structurally checks a serialized bundle.
func Parse(data []byte) (*Bundle, error) {
	var w wireBundle
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed bundle: %w", err)
	}
	if w.Version == nil {
		return nil, fmt.Errorf("malformed bundle: missing version")
	}
	if w.Timestamp == nil {
		return nil, fmt.Errorf("malformed bundle: missing timestamp")
	}
	if w.Data == nil {
		return nil, fmt.Errorf("malformed bundle: missing data")
	}
	b := &Bundle{Version: *w.Version, Timestamp: *w.Timestamp, Data: w.Data}
	if _, err := b.Time(); err != nil {
		return nil, fmt.Errorf("malformed bundle: bad timestamp %q", b.Timestamp)
	}
	return b, nil
}

// Marshal encodes the bundle compactly. Tables and columns are in sorted
// order so the output is byte-stable.
func Marshal(b *Bundle) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	return data, nil
}

// MarshalIndent is Marshal with two-space indentation for files meant to be
// read by people.
func MarshalIndent(b *Bundle) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	return data, nil
}
