// Package database provides the SQLite connection that backs durable session
// storage for the admin console.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Applying embedded, forward-only schema migrations
//   - Connection lifecycle and health checks
//
// The file holds bearer credentials, so it is created with 0600 permissions
// inside a 0750 directory.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Storage.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
