// Package archive holds the table-level repos for session records, their
// authority ledger, derivatives and delegation grants. Invariant-critical
// writes go through internal/data/aggregates, not through these repos directly.
package archive
