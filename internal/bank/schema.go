package bank

const (
	createAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
	id BIGINT PRIMARY KEY,
	balance BIGINT NOT NULL
)`

	createTransfersTable = `CREATE TABLE IF NOT EXISTS transfers (
	id UUID PRIMARY KEY,
	run_id UUID NOT NULL,
	from_id BIGINT NOT NULL,
	to_id BIGINT NOT NULL,
	amount BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	truncateTables = "TRUNCATE TABLE transfers, accounts"

	seedAccounts = `INSERT INTO accounts (id, balance)
SELECT g.i, $2::INT8 FROM generate_series(0, $1::INT8 - 1) AS g(i)`

	selectBalance = "SELECT balance FROM accounts WHERE id = $1"

	debitAccount  = "UPDATE accounts SET balance = balance - $1 WHERE id = $2"
	creditAccount = "UPDATE accounts SET balance = balance + $1 WHERE id = $2"

	insertTransfer = `INSERT INTO transfers (id, run_id, from_id, to_id, amount)
VALUES ($1, $2, $3, $4, $5)`

	selectTotals = "SELECT count(*), COALESCE(SUM(balance), 0) FROM accounts"

	accountsTableExists = "SELECT to_regclass('accounts') IS NOT NULL"
	anyAccount          = "SELECT EXISTS (SELECT 1 FROM accounts)"

	countTransfers = "SELECT count(*) FROM transfers WHERE run_id = $1"
)

// schemaStatements create and empty the tables. They run before, not
// inside, the retried seeding transaction.
var schemaStatements = []string{createAccountsTable, createTransfersTable, truncateTables}
