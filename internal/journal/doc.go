// Package journal persists what the core did: every command posted through
// the channel (with its arguments, timing and outcome) and the tracked well
// quantities after each transfer.
//
// SQLiteRepository is attached to the channel as an observer and to the
// controller as its quantity recorder:
//
//	repo := journal.NewSQLiteRepository(db.DB)
//	ch.AddObserver(repo)
//	ctl.SetQuantityRecorder(repo)
//
// On startup, LatestQuantities feeds zone.Registry.Restore so tracked
// quantities survive a restart.
package journal
