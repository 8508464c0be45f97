// iface.go defines the Log interface for dependency injection and testing.
//
// The concrete *Database type satisfies this interface. Code that consumes
// the log store (the state manager, the admin subcommands) can accept Log
// instead of *Database, enabling mock injection in tests.
package logstore

// Log defines the log-store operations available to readers and writers.
// The concrete *Database type implements this interface.
type Log interface {
	// Append blocks for the exclusive lock and returns a scoped write
	// handle positioned at the writer's current segment length.
	Append(writer string) (*WriteHandle, error)

	// ReadAll yields every complete line beyond the given offsets,
	// per-writer in increasing offset order.
	ReadAll(offsets OffsetMap) ([]Record, error)

	// GetOffsets returns the durable record-boundary length per writer.
	GetOffsets() (OffsetMap, error)

	// RLock acquires the shared lock for a multi-call consistent snapshot.
	RLock() (func(), error)
}

// Compile-time check that *Database implements Log.
var _ Log = (*Database)(nil)
