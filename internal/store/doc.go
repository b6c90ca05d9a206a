// Package store persists the routing table as a flat mapping from endpoint
// to port. Two drivers are provided: a JSON document file, rewritten in full
// through a temp file and rename, and a bbolt database holding one bucket.
package store
