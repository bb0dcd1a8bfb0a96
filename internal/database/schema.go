package database

import _ "embed"

// Schema is the DDL produced by applying every migration. Tests apply it
// directly to in-memory stores.
//
//go:embed schema.sql
var Schema string
