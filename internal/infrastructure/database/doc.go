// Package database opens the SQLite file behind the command journal and
// quantity ledger and applies its schema migrations.
//
// The connection is limited to one writer; WAL mode lets the history
// command read while the daemon writes. Migrations are embedded by the
// migrations package and registered through Migrations:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
package database
