package sqlite

// SQL for the ledger tables in the main database. Every value is stored as
// TEXT except ID; timestamps are RFC 3339 UTC.
const (
	createMetaTable = `
CREATE TABLE IF NOT EXISTS main.META (
    ID              INTEGER,
    START_TIME      TEXT,
    PREV_START_TIME TEXT,
    DB_VERSION      TEXT,
    ENGINE_VERSION  TEXT,
    RUNTIME_VERSION TEXT,
    SQL_VERSION     TEXT,
    SALT_CHECK      TEXT
)`

	createMetaHistoryTable = `
CREATE TABLE IF NOT EXISTS main.META_HISTORY (
    ID              INTEGER,
    START_TIME      TEXT,
    PREV_START_TIME TEXT,
    DB_VERSION      TEXT,
    ENGINE_VERSION  TEXT,
    RUNTIME_VERSION TEXT,
    SQL_VERSION     TEXT,
    SALT_CHECK      TEXT,
    CREATE_DATE     TEXT
)`

	metaColumns = `ID, START_TIME, PREV_START_TIME, DB_VERSION, ENGINE_VERSION, RUNTIME_VERSION, SQL_VERSION, SALT_CHECK`

	selectMeta        = `SELECT ` + metaColumns + ` FROM main.META`
	selectMetaHistory = `SELECT ` + metaColumns + `, CREATE_DATE FROM main.META_HISTORY ORDER BY CREATE_DATE`
	deleteMeta        = `DELETE FROM main.META`
	insertMeta        = `INSERT INTO main.META (` + metaColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertMetaHistory = `INSERT INTO main.META_HISTORY (` + metaColumns + `, CREATE_DATE) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)
