// Package bank is a workload that moves money between accounts inside
// roachtx transactions and checks that no money is created or destroyed.
//
// Every transfer reads both balances, moves the amount when the source can
// cover it, and records a ledger row, all inside roachtx.ExecuteTx. Under
// contention CockroachDB aborts some of these transactions with SQLSTATE
// 40001 and the executor restarts them at the savepoint. The invariant
//
//	SUM(balance) = accounts * initial_balance
//
// is checked periodically while workers run and once more at the end.
//
// Two stores back the workload: PgxStore (pgxpool + pgxtx) and SQLStore
// (database/sql + lib/pq + sqltx). Both share the transaction bodies in
// this package.
package bank
