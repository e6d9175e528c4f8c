// Package appfs exposes the files embedded in the binaries: SQL migrations, email templates and password lists.
package appfs

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql all:assets
var FS embed.FS

// Migrations returns the migrations directory as the root of an fs.FS.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "migrations")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}
