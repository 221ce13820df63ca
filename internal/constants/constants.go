package constants

// Advisory lock ids share the key space of every application on the same
// database, so they are offset away from small integers.
const (
	lockBase int64 = 0x41505300

	LedgerMigrationLock = lockBase + 1
)

const (
	LedgerSchema = "assetprocessor_schema"

	// LedgerKeyPrefix namespaces the attempt ledger keys in Redis.
	LedgerKeyPrefix = "assetprocessor:ledger"
)
