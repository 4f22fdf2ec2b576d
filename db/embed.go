// Package db provides the embedded schema and seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all storefront tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the starter catalog loaded by seed-db.
//
//go:embed seed/products.json
var SeedProducts []byte
