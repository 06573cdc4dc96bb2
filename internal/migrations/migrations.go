// Package migrations embeds the SQL migrations of the products table.
package migrations

import "embed"

// FS holds the migration files under the "sql" directory.
//
//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory inside FS containing the migrations.
const Dir = "sql"
