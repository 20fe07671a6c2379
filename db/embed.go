// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema creates the catalog price table and the dispatched order trail.
// It is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
