// Package files provides file discovery and output helpers for the panel build.
//
// Discovery expands source path patterns relative to the data directory and
// returns matches in a stable, name-sorted order.
//
// Manager writes outputs relative to the output directory. Writes are atomic
// full overwrites, so a failed run never leaves a half-written panel behind.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/path/to/data")
//	sources, err := discovery.FindFilesByPattern("yields/*.csv")
//
//	manager := files.NewManager("/path/to/output")
//	err = manager.WriteAtomic("panel.csv", func(w io.Writer) error { ... })
package files
