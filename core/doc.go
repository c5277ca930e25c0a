// Package core provides core types used throughout DuckServe.
//
// The package defines the wire Command, result Formats and their cache keys,
// the bundle Manifest, and the typed errors surfaced to clients.
//
// # Commands
//
// One Command is decoded per inbound frame:
//
//	cmd, err := core.DecodeCommand([]byte(`{"type":"json","sql":"SELECT 1 AS a"}`))
//
// # Cache Keys
//
// A cache key is the sha256 of the SQL text plus the format extension. It is
// stable across processes and safe to use as a file name inside a bundle:
//
//	key := core.KeyFor("SELECT 1", core.ArrowFormat)
//	// e004ebd5...72cdecf5.arrow
//
// # Identity
//
// Identity identifies the author of bundle history commits:
//
//	identity := core.Identity{
//	    Name:  "DuckServe",
//	    Email: "server@duckserve.local",
//	}
package core
