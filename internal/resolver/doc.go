// Package resolver picks the routing entry for an inbound proxy request.
//
// Endpoints are tried longest first, so /app/api wins over /app for
// /app/api/users. When the request path matches nothing, the path of the
// Referer URL is tried the same way; such referer-derived matches let
// root-relative assets requested by a proxied page reach the page's backend.
package resolver
