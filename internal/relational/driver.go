package relational

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"
)

// DriverName is the database/sql driver the relational engine opens.
// It is mattn/go-sqlite3 with studydb's SQL functions registered on every
// connection.
const DriverName = "sqlite3_studydb"

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("normalize_id", NormalizeID, true)
			},
		})
	})
}

// idSeparators are accepted between a tag and the identifier body.
var idSeparators = []string{"_", "-", ":"}

// NormalizeID rewrites id into the tagged form "<prefix>_<body>".
// The body is NFC-normalized and trimmed; an existing tag in any accepted
// separator style is replaced, so NormalizeID is idempotent.
//
// Available in SQL as normalize_id(prefix, id).
func NormalizeID(prefix, id string) string {
	body := norm.NFC.String(strings.TrimSpace(id))
	tag := strings.ToLower(prefix)
	lower := strings.ToLower(body)
	for _, sep := range idSeparators {
		if strings.HasPrefix(lower, tag+sep) {
			body = body[len(tag)+len(sep):]
			break
		}
	}
	return tag + "_" + body
}
