// Package healthcheck classifies local backends as online or offline with a
// single HEAD request per probe. Results are never cached.
package healthcheck
