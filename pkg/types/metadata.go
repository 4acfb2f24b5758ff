package types

// Ledger table names. Both live in the main database.
const (
	MetaTable        = "META"
	MetaHistoryTable = "META_HISTORY"
)

// MetaRecord is the single row of the META table.
type MetaRecord struct {
	ID             int64  `json:"ID"`
	StartTime      string `json:"START_TIME"`
	PrevStartTime  string `json:"PREV_START_TIME"`
	DBVersion      string `json:"DB_VERSION"`
	EngineVersion  string `json:"ENGINE_VERSION"`
	RuntimeVersion string `json:"RUNTIME_VERSION"`
	SQLVersion     string `json:"SQL_VERSION"`
	SaltCheck      string `json:"SALT_CHECK"`
}

// MetaHistoryRecord is an archived MetaRecord. CreateDate is when it was
// archived.
type MetaHistoryRecord struct {
	MetaRecord
	CreateDate string `json:"CREATE_DATE"`
}

// BuildInfo carries the versions written into META on every launch. It is
// built once by the caller and passed to the ledger.
type BuildInfo struct {
	// DBVersion is the schema version of the user's database, from config.
	DBVersion string
	// EngineVersion is the dbstarter release.
	EngineVersion string
	// RuntimeVersion is the Go runtime version.
	RuntimeVersion string
	// SQLVersion is the embedded SQL engine version.
	SQLVersion string
}
