package constants

// Advisory lock ids.
const (
	MigrationLock = iota
	LeaseRecoveryLock
	RetentionLock
)

var Locks = []int{
	MigrationLock,
	LeaseRecoveryLock,
	RetentionLock,
}

const (
	MaxRetryAttempt = 3
)
