package types

import "errors"

// Configuration errors. These are raised before any database mutation.
var (
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrMissingField          = errors.New("missing required field")
	ErrMalformedRow          = errors.New("malformed definition row")
	ErrDuplicateDatabase     = errors.New("duplicated database name")
	ErrNoMainDatabase        = errors.New("db_list has no main database")
	ErrMultipleMainDatabases = errors.New("db_list can only contain 1 main database")
	ErrUnknownPurpose        = errors.New("unknown database purpose")
	ErrUnsupportedHashMethod = errors.New("unsupported hash method")
	ErrSaltKeyMissing        = errors.New("salt key is not configured")
	ErrUnknownCyclePolicy    = errors.New("unknown cycle policy")
)

// Backend lifecycle and attach errors.
var (
	ErrAlreadyAttached  = errors.New("backend already attached")
	ErrNotAttached      = errors.New("backend is not attached")
	ErrAttachIncomplete = errors.New("not every configured database is attached")
	ErrUnknownDatabase  = errors.New("database is not in db_list")
)

// Schema construction errors.
var (
	ErrDuplicateColumn  = errors.New("duplicate column definition")
	ErrInvalidLink      = errors.New("invalid link target")
	ErrCyclicSchema     = errors.New("table links form a cycle")
	ErrMissingReference = errors.New("referenced table does not exist")
)

// Ledger and integrity errors. Both are fatal: the connection must not be
// used after either is returned.
var (
	ErrLedgerCorrupt        = errors.New("main.META is broken, too many rows")
	ErrIntegrityUnavailable = errors.New("no SALT_CHECK stored, integrity cannot be established")
	ErrIntegrityMismatch    = errors.New("SALT_CHECK value mismatch, potential integrity issue detected")
)

// ErrBackendUnusable is returned by a backend whose bootstrap failed.
var ErrBackendUnusable = errors.New("database bootstrap failed, connection is unusable")
