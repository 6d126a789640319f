// Package database provides the SQLite connection used by the irrigation
// controller for last-run dates and the run log.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Versioned schema migrations read from any fs.FS
//   - Health checks for the API
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are forward-only: only *.up.sql files are applied. New
// columns must be nullable or have a default.
package database
