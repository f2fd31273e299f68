// Package version reports build information of runkit binaries.
//
// Release builds stamp the version through -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/runkit/version.Version=1.4.0" ./cmd/runkit
//
// Everything else falls back to the VCS settings embedded by the Go toolchain.
package version
