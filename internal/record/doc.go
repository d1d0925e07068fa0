// Package record provides the tagged row representation shared by both
// storage engines and the backup codec.
//
// A row is a mapping from column name to a closed set of primitive values
// (Null, Text, Int, Real, Bool). Rows are validated against a Table before
// any engine writes them.
//
// Key constraints:
//   - Real values always encode with a fractional marker so a JSON round trip
//     keeps them Real
//   - nested JSON is never a column value; structured payloads are stored as
//     stringified Text
//   - row keys serialize in sorted order so exports are byte-stable
package record
