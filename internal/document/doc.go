// Package document implements the document storage engine: typed tables of
// rows addressed by a key field.
//
// Table shapes are CUE definitions. Every row written is unified with its
// closed definition, absent fields are filled from the definition's defaults,
// and the result must be concrete. A row that does not fit its shape is
// rejected before anything changes.
//
// Tables keep insertion order. Writing a row whose key already exists
// replaces it in place, so re-deriving the same data is idempotent.
package document
