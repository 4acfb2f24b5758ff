// Package types defines the records that drive a database bootstrap: the
// database list, column and table definitions, view definitions, the META
// ledger row, the salt configuration and the standard errors shared by every
// bootstrap stage.
package types
