// Package archive is the core model of the replication archive: session
// records, their append-only authority ledger and the derivatives bound to
// ledger versions. It has no storage or transport dependencies beyond the
// gorm column tags on its types and does not log.
package archive
