// Package assets embeds files shipped inside the server binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var FS embed.FS

// Migrations returns the SQL migrations rooted at their directory, so file
// names ("001_kv.sql") are what gets recorded in _migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		// The pattern above guarantees the directory exists.
		panic(err)
	}
	return sub
}
