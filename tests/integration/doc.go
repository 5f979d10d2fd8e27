// Package integration exercises the storage-backed components against real
// databases started with testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
