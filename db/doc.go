// Package db exposes the watch-state data model (play records, favorites,
// skip configs, search history, user credentials and admin configuration)
// through a single Manager.
//
// The backend is chosen once per process from storage.Config. A deployment
// with no backend configured, or with one that cannot be reached at startup,
// runs on storage.EmptyStorage: reads find nothing and writes report success
// without persisting. The only sign of this is a warning in the logs.
//
//	mgr := db.New(cfg, logger)
//	err := mgr.SavePlayRecord(ctx, "alice", "src1", "ep1", record)
//	rec, err := mgr.GetPlayRecord(ctx, "alice", "src1", "ep1")
package db
