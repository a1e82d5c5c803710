//go:build integration

// Package integration provides integration tests for rangezip.
//
// These tests require Docker and serve archives from a real nginx container
// using testcontainers, exercising HTTP range requests end to end.
// Run with: go test -tags=integration ./integration/...
package integration
