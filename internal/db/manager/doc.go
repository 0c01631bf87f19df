// Package manager creates and drops the databases the bank workload runs in.
//
// Database names are quoted with pgx.Identifier.Sanitize(), so names with
// spaces, quotes or other special characters are safe.
//
// # Example Usage
//
//	mgr := manager.New()
//
//	created, err := mgr.Ensure(ctx, pool, "bank")
//
//	err = mgr.Drop(ctx, pool, "bank")
package manager
