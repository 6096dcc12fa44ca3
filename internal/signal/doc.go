// Package signal persists captured RF433 signals.
//
// A signal is an opaque byte blob addressed by a label. Labels are
// lowercase slugs so they can travel safely through config files, MQTT
// topics and URLs. The package exposes a Repository interface with a
// SQLite implementation; the bridge packages depend only on the narrow
// load/save subset, so alternative stores plug in without touching them.
//
// # Usage
//
//	repo := signal.NewSQLiteRepository(db)
//	if err := repo.Init(ctx); err != nil {
//	    return err
//	}
//	if err := repo.Save(ctx, "tv_power", captured); err != nil {
//	    return err
//	}
package signal
