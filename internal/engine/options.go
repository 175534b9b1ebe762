package engine

// Options configures one Engine instance, grounded on the teacher repo's
// wal.Options/DefaultOptions shape (pkg/wal/options.go) but scoped to the
// engine as a whole: this engine owns exactly one WAL, so the byte budget
// lives on the engine's own Options rather than a separately-constructed
// WAL options value. There is no sync-policy option; the WAL syncs after
// every append.
type Options struct {
	// Dir is the directory this engine owns. It is created if absent.
	Dir string

	// MemtableMaxBytes is the memtable byte budget (spec §4.4): a Put
	// that would push memtable_bytes at or past this budget triggers a
	// flush first.
	MemtableMaxBytes uint64
}

// DefaultMemtableMaxBytes is a conservative default budget for embedding
// contexts that do not tune it.
const DefaultMemtableMaxBytes = 4 * 1024 * 1024

// DefaultOptions returns an Options value for dir with the default
// memtable budget.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:              dir,
		MemtableMaxBytes: DefaultMemtableMaxBytes,
	}
}
