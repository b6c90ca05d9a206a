// Package routing holds the mutable table mapping endpoint prefixes to
// local backend ports, together with endpoint canonicalization and the
// validation rules every stored endpoint obeys.
//
// The table is shared by the proxy (read-only) and the admin API (the only
// writer). Every mutation is persisted before the write lock is released,
// so readers never observe a half-applied change.
package routing
