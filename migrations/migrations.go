// Package migrations embeds the sqlite schema applied at startup by
// store/sqlite.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the embedded schema filesystem, one *.sql file per table,
// applied in lexical filename order.
func Schema() fs.FS {
	sub, err := fs.Sub(schemaFS, "schema")
	if err != nil {
		panic(err) // unreachable: embed path is fixed at compile time
	}
	return sub
}
