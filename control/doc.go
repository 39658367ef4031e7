// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, file configuration, and debug introspection layer for the
// socev reactors.
//
// Provides:
//   - TOML configuration decoding into neutral sections
//   - Counter registry safe for snapshots from other goroutines
//   - State export, debug hooks, and probe registration
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
