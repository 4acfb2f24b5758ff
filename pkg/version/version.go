// Package version holds the dbstarter release version.
package version

// Version is written to META.ENGINE_VERSION on every launch. A change here
// archives the previous META row into META_HISTORY.
const Version = "1.5.1"
