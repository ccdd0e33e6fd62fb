// Package aggregates defines domain-facing aggregate contracts and the canonical
// coded error shared by the archive core and its infrastructure.
//
// These contracts avoid persistence/transport details and mark the write
// boundaries where invariants must be enforced atomically.
package aggregates
