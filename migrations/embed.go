// Package migrations embeds SQL migration files into the binary.
//
// The console carries its storage schema with it so a fresh machine needs
// nothing beyond the executable and a config file.
package migrations

import (
	"embed"

	"github.com/graylogic/admin-console/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
