// Package migrations embeds the schema for each supported backend.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per backend.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
