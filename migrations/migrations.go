// Package migrations содержит SQL миграции хранилищ, встроенные в бинарник.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
