// Package cvec is an embedded vector database: it stores fixed-dimension
// float32 vectors keyed by uint64 identifiers, persists them to a single
// file, and serves approximate nearest-neighbor queries over an HNSW
// graph under a choice of three similarity metrics.
//
// A [Store] is a library call, not a server: every operation is a direct
// method call against a file-backed handle, synchronized with ordinary
// mutexes. There is no network surface and no background goroutines.
package cvec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cvecdb/cvec/internal/diag"
)

// Config configures [Create]. Name is descriptive only and is not written
// to the file; Path is the single file the store owns.
type Config struct {
	Name     string
	Path     string
	Dim      int
	Metric   Metric
	// MemoryMapped is accepted for interface compatibility with the
	// database this package was modeled on; this implementation always
	// uses ordinary buffered file I/O and ignores the flag.
	MemoryMapped bool
	MaxVectors   int

	// Logger receives non-fatal diagnostics (hash-chain corruption on
	// lookup, HNSW maintenance failures during insert/delete). Defaults
	// to a discarding logger if nil.
	Logger diag.Logger
}

func (c *Config) validate() error {
	if c.Path == "" {
		return ErrInvalidArgs
	}
	if c.Dim <= 0 || c.Dim > 4096 {
		return ErrInvalidArgs
	}
	if c.Metric != MetricCosine && c.Metric != MetricDotProduct && c.Metric != MetricEuclidean {
		return ErrInvalidArgs
	}
	return nil
}

// Vector is a single stored item: an identifier, its payload, and the
// Unix timestamp of its most recent write.
type Vector struct {
	ID        uint64
	Data      []float32
	Timestamp uint64
}

// Query parameterizes [Store.Search].
type Query struct {
	Vector        []float32
	TopK          int
	Metric        Metric
	MinSimilarity float32
	// Ef overrides the HNSW candidate-set width for this query. Zero
	// means "use the store's default" (2*TopK, per SPEC_FULL.md §9).
	Ef int
}

// Stats reports current store statistics, per SPEC_FULL.md §6.
type Stats struct {
	VectorCount     uint64
	Dimension       uint32
	DefaultMetric   Metric
	Path            string
	TotalSizeBytes  int64
}

// Store is an open handle to a single-file vector database.
type Store struct {
	writeMu sync.Mutex
	rw      sync.RWMutex

	path   string
	name   string
	file   *os.File
	header fileHeader
	ids    *idMap
	index  *HNSW
	log    diag.Logger
	closed bool
}

// Create initializes a new database file at cfg.Path and returns an open
// handle. It fails with ErrInvalidArgs if cfg is malformed, ErrFileIO if
// the file already exists or cannot be created.
func Create(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Path); err == nil {
		return nil, fmt.Errorf("cvec: %w: %s already exists", ErrFileIO, cfg.Path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
		}
	}

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}

	log := cfg.Logger
	if log == nil {
		log = diag.Discard
	}

	now := uint64(nowUnix())
	s := &Store{
		path: cfg.Path,
		name: cfg.Name,
		file: f,
		header: fileHeader{
			dimension: uint32(cfg.Dim),
			metric:    cfg.Metric,
			created:   now,
			modified:  now,
			nextID:    1,
		},
		ids: newIDMap(log),
		index: NewHNSW(HNSWConfig{
			Dim:    cfg.Dim,
			Metric: cfg.Metric,
		}),
		log: log,
	}
	if err := s.header.write(f); err != nil {
		f.Close()
		os.Remove(cfg.Path)
		return nil, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	return s, nil
}

// Open reconstructs a [Store] from an existing file, replaying every live
// record into a fresh HNSW index. Returns ErrNotFound if the file does
// not exist, ErrCorrupt if the header or a record fails validation.
func Open(path string, opts ...OpenOption) (*Store, error) {
	cfg := openConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = diag.Discard
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}

	header, err := readFileHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &Store{
		path:   path,
		file:   f,
		header: header,
		ids:    newIDMap(log),
		index: NewHNSW(HNSWConfig{
			Dim:    int(header.dimension),
			Metric: header.metric,
		}),
		log: log,
	}

	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.ids.checkIntegrity(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// OpenOption configures [Open].
type OpenOption func(*openConfig)

type openConfig struct {
	logger diag.Logger
}

// WithLogger sets the diagnostic logger used by an opened store.
func WithLogger(l diag.Logger) OpenOption {
	return func(c *openConfig) { c.logger = l }
}

// replay scans every record from the end of the header to EOF, registers
// undeleted ones in the identifier map, and replays them into the HNSW
// index. A per-record HNSW failure is logged, not fatal: the vector
// remains reachable through Get, but the index has no node for it.
func (s *Store) replay() error {
	offset := int64(headerSize)
	for {
		if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
		}
		rh, err := readRecordHeader(s.file)
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
			}
			break // EOF (or a short read at EOF) ends the scan.
		}
		if rh.dimension != s.header.dimension {
			return fmt.Errorf("cvec: %w: record dimension %d != %d", ErrCorrupt, rh.dimension, s.header.dimension)
		}
		recOffset := offset
		offset += recordSize(rh.dimension)
		if rh.deleted {
			continue
		}

		payload, err := readPayload(s.file, rh.dimension)
		if err != nil {
			return err
		}

		s.ids.Put(rh.id, recOffset, rh.dimension, rh.timestamp)
		if err := s.index.Insert(rh.id, payload); err != nil {
			s.log.Warn("failed to replay vector into index", "id", rh.id, "error", err)
		}
	}
	return nil
}

// Close rewrites the header with the current vector count and next
// identifier, then releases the file handle. The original created
// timestamp is preserved; only modified advances.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return ErrInvalidArgs
	}
	s.header.vecCount = uint64(s.ids.Len())
	s.header.modified = uint64(nowUnix())
	if err := s.header.write(s.file); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	s.closed = true
	return nil
}

// Drop removes the named database file. It does not require an open
// handle.
func Drop(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	return nil
}

// Insert appends v to the store and adds it to the HNSW index. Returns
// ErrDimensionMismatch if len(v.Data) doesn't match the store's
// dimension, ErrInvalidArgs if v.ID is already present.
func (s *Store) Insert(v Vector) error {
	if len(v.Data) != int(s.header.dimension) {
		return ErrDimensionMismatch
	}
	if v.ID == 0 {
		return ErrInvalidArgs
	}

	s.writeMu.Lock()
	s.rw.Lock()
	defer s.rw.Unlock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrInvalidArgs
	}
	if _, ok := s.ids.Get(v.ID); ok {
		return ErrInvalidArgs
	}

	ts := v.Timestamp
	if ts == 0 {
		ts = uint64(nowUnix())
	}

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	rh := recordHeader{id: v.ID, dimension: uint32(len(v.Data)), timestamp: ts}
	if err := writeRecord(s.file, rh, v.Data); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}

	s.ids.Put(v.ID, offset, rh.dimension, ts)
	if err := s.index.Insert(v.ID, v.Data); err != nil {
		s.log.Warn("hnsw insert failed, vector retrievable by id only", "id", v.ID, "error", err)
	}

	s.header.vecCount++
	if v.ID >= s.header.nextID {
		s.header.nextID = v.ID + 1
	}
	s.header.modified = uint64(nowUnix())
	return nil
}

// Get returns a fresh copy of the live vector with the given identifier.
// Returns ErrInvalidArgs if id is 0, ErrVectorNotFound if no live vector
// has that identifier.
func (s *Store) Get(id uint64) (Vector, error) {
	if id == 0 {
		return Vector{}, ErrInvalidArgs
	}

	s.rw.RLock()
	defer s.rw.RUnlock()

	if s.closed {
		return Vector{}, ErrInvalidArgs
	}
	e, ok := s.ids.Get(id)
	if !ok {
		return Vector{}, ErrVectorNotFound
	}

	if _, err := s.file.Seek(e.offset+recordHeaderSize, io.SeekStart); err != nil {
		return Vector{}, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	payload, err := readPayload(s.file, e.dimension)
	if err != nil {
		return Vector{}, err
	}
	return Vector{ID: id, Data: payload, Timestamp: e.timestamp}, nil
}

// Delete marks the vector with the given identifier as deleted, rewrites
// its deletion flag in place, and removes it from the HNSW index.
// Returns ErrVectorNotFound if no live vector has that identifier.
func (s *Store) Delete(id uint64) error {
	if id == 0 {
		return ErrInvalidArgs
	}

	s.writeMu.Lock()
	s.rw.Lock()
	defer s.rw.Unlock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrInvalidArgs
	}
	e, ok := s.ids.Get(id)
	if !ok {
		return ErrVectorNotFound
	}

	if _, err := s.file.Seek(e.offset+deletedFlagOffset, io.SeekStart); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	if _, err := s.file.Write([]byte{1}); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}

	s.ids.MarkDeleted(id)
	if err := s.index.Remove(id); err != nil {
		s.log.Warn("hnsw remove failed", "id", id, "error", err)
	}

	s.header.vecCount--
	s.header.modified = uint64(nowUnix())
	return nil
}

// Search returns up to q.TopK vectors ranked by similarity to q.Vector
// under q.Metric, filtering out results below q.MinSimilarity (0 means
// no filter). It validates the query, prefers the HNSW index, and falls
// back to a brute-force scan of every live record if the index search
// fails or returns nothing. The index scores only under the store's own
// metric, so a query with a different q.Metric always takes the
// brute-force path.
func (s *Store) Search(q Query) ([]Match, error) {
	if len(q.Vector) != int(s.header.dimension) {
		return nil, ErrDimensionMismatch
	}
	if q.TopK <= 0 || q.TopK > 10000 {
		return nil, ErrInvalidArgs
	}
	if q.MinSimilarity < -1 || q.MinSimilarity > 1 {
		return nil, ErrInvalidArgs
	}

	s.rw.RLock()
	defer s.rw.RUnlock()

	if s.closed {
		return nil, ErrInvalidArgs
	}
	if s.ids.Len() == 0 {
		return []Match{}, nil
	}

	ef := q.Ef
	if ef <= 0 {
		ef = 2 * q.TopK
	}

	if q.Metric == s.header.metric {
		matches, err := s.index.Search(q.Vector, q.TopK, ef)
		if err == nil && len(matches) > 0 {
			return filterMinSimilarity(matches, q.MinSimilarity), nil
		}
	}

	return s.bruteForceSearch(q), nil
}

// bruteForceSearch scans every live record, scoring it under q.Metric,
// and keeps the top q.TopK. It is the store's correctness backstop when
// the HNSW index is empty, corrupt, or degraded.
func (s *Store) bruteForceSearch(q Query) []Match {
	type scored struct {
		id    uint64
		score float32
	}
	var all []scored
	s.ids.All(func(e idMapEntry) {
		if _, err := s.file.Seek(e.offset+recordHeaderSize, io.SeekStart); err != nil {
			return
		}
		payload, err := readPayload(s.file, e.dimension)
		if err != nil {
			return
		}
		all = append(all, scored{id: e.id, score: Score(q.Metric, q.Vector, payload)})
	})

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > q.TopK {
		all = all[:q.TopK]
	}

	out := make([]Match, 0, len(all))
	for _, a := range all {
		if q.MinSimilarity != 0 && a.score < q.MinSimilarity {
			continue
		}
		out = append(out, Match{ID: a.id, Similarity: a.score})
	}
	return out
}

func filterMinSimilarity(matches []Match, min float32) []Match {
	if min == 0 {
		return matches
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Similarity >= min {
			out = append(out, m)
		}
	}
	return out
}

// Stats returns current store statistics.
func (s *Store) Stats() (Stats, error) {
	s.rw.RLock()
	defer s.rw.RUnlock()
	if s.closed {
		return Stats{}, ErrInvalidArgs
	}
	info, err := s.file.Stat()
	if err != nil {
		return Stats{}, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	return Stats{
		VectorCount:    uint64(s.ids.Len()),
		Dimension:      s.header.dimension,
		DefaultMetric:  s.header.metric,
		Path:           s.path,
		TotalSizeBytes: info.Size(),
	}, nil
}

// Index exposes the store's underlying HNSW index for callers that need
// Validate/Repair/Save/Load or the thread-safety façade directly.
func (s *Store) Index() *HNSW { return s.index }

// Lock/Unlock/RLock/RUnlock expose the store's own lock pair, per
// SPEC_FULL.md §5's thread-safety contract. The documented lock order
// for combined store+index operations is store first, then index.
func (s *Store) Lock()    { s.writeMu.Lock() }
func (s *Store) Unlock()  { s.writeMu.Unlock() }
func (s *Store) RLock()   { s.rw.RLock() }
func (s *Store) RUnlock() { s.rw.RUnlock() }
