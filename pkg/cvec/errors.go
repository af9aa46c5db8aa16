package cvec

import "errors"

// Sentinel errors covering the enumerated taxonomy this package reports.
// Wrap with fmt.Errorf("cvec: ...: %w", ErrX) for context; check with
// errors.Is.
var (
	// ErrInvalidArgs reports a caller-supplied argument outside its
	// documented domain (bad dimension, zero identifier, out-of-range
	// top-k, malformed config, and similar).
	ErrInvalidArgs = errors.New("cvec: invalid arguments")

	// ErrOutOfMemory reports an allocation failure. Go programs rarely
	// see this directly, but it is surfaced rather than panicking when a
	// capacity computation would otherwise overflow or a requested size
	// is absurd (e.g. a corrupt file claiming a multi-terabyte record).
	ErrOutOfMemory = errors.New("cvec: out of memory")

	// ErrFileIO reports a failure performing I/O against the backing
	// file (create, open, read, write, seek, stat).
	ErrFileIO = errors.New("cvec: file I/O error")

	// ErrNotFound reports that the named database file does not exist.
	ErrNotFound = errors.New("cvec: database not found")

	// ErrVectorNotFound reports that no live vector has the requested
	// identifier.
	ErrVectorNotFound = errors.New("cvec: vector not found")

	// ErrDimensionMismatch reports that a vector's length does not equal
	// the database's configured dimension.
	ErrDimensionMismatch = errors.New("cvec: dimension mismatch")

	// ErrCorrupt reports that the index or store has failed an
	// integrity check. Once set on the HNSW index it rejects every
	// mutation and search until Repair clears it.
	ErrCorrupt = errors.New("cvec: database corrupt")
)
