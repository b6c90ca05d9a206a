// Package handler implements the two HTTP surfaces: the public proxy, which
// resolves each request to a local backend and forwards it, and the admin
// API, which reads and edits the routing table.
package handler
