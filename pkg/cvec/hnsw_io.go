package cvec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// hnswMagic is "HNSW" read as a little-endian uint32, matching
// SPEC_FULL.md §4.3's 0x484E5357.
const hnswMagic uint32 = 0x484E5357

const hnswVersion uint32 = 1

// Save writes the entire index to w: magic, version, config block,
// node-table metadata, then for every table slot an active flag and,
// when active, the node's identifier, level, dimension, payload, and
// per-level neighbor lists. Tombstoned slots are written as inactive
// markers so neighbor slot indices stay valid across reload.
func (h *HNSW) Save(w io.Writer) error {
	h.rw.RLock()
	defer h.rw.RUnlock()

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	write := func(v any) error { return binary.Write(bw, le, v) }

	if err := write(hnswMagic); err != nil {
		return fmt.Errorf("cvec: save hnsw magic: %w", err)
	}
	if err := write(hnswVersion); err != nil {
		return fmt.Errorf("cvec: save hnsw version: %w", err)
	}

	for _, v := range []uint32{
		uint32(h.cfg.Dim),
		uint32(h.cfg.Metric),
		uint32(h.cfg.M),
		uint32(h.cfg.EfConstruction),
		uint32(h.cfg.EfSearch),
	} {
		if err := write(v); err != nil {
			return fmt.Errorf("cvec: save hnsw config: %w", err)
		}
	}
	if err := write(h.cfg.Ml); err != nil {
		return fmt.Errorf("cvec: save hnsw config: %w", err)
	}

	if err := write(uint32(len(h.nodes))); err != nil {
		return err
	}
	if err := write(uint32(h.count)); err != nil {
		return err
	}
	if err := write(uint32(h.maxLevel)); err != nil {
		return err
	}
	if err := write(h.entryPoint); err != nil {
		return err
	}

	if err := write(uint32(len(h.free))); err != nil {
		return err
	}
	for _, f := range h.free {
		if err := write(f); err != nil {
			return err
		}
	}

	for _, nd := range h.nodes {
		if nd == nil {
			if err := write(uint8(0)); err != nil {
				return err
			}
			continue
		}
		if err := write(uint8(1)); err != nil {
			return err
		}
		if err := write(nd.id); err != nil {
			return err
		}
		if err := write(uint32(nd.level)); err != nil {
			return err
		}
		if err := write(uint32(len(nd.vector))); err != nil {
			return err
		}
		for _, v := range nd.vector {
			if err := write(v); err != nil {
				return err
			}
		}
		for lev := 0; lev <= nd.level; lev++ {
			var nbrs []uint32
			if lev < len(nd.neighbors) {
				nbrs = nd.neighbors[lev]
			}
			if err := write(uint32(len(nbrs))); err != nil {
				return err
			}
			for _, n := range nbrs {
				if err := write(n); err != nil {
					return err
				}
			}
		}
	}

	return bw.Flush()
}

// LoadHNSW reads an index previously written by [HNSW.Save]. Any failure
// leaves no partially-built index behind; the error is the only result.
func LoadHNSW(r io.Reader) (*HNSW, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian
	read := func(v any) error { return binary.Read(br, le, v) }

	var magic uint32
	if err := read(&magic); err != nil {
		return nil, fmt.Errorf("cvec: load hnsw magic: %w", err)
	}
	if magic != hnswMagic {
		return nil, fmt.Errorf("cvec: load hnsw: %w: bad magic %#x", ErrCorrupt, magic)
	}

	var version uint32
	if err := read(&version); err != nil {
		return nil, fmt.Errorf("cvec: load hnsw version: %w", err)
	}
	if version != hnswVersion {
		return nil, fmt.Errorf("cvec: load hnsw: %w: unsupported version %d", ErrCorrupt, version)
	}

	var dim, metric, m, efC, efS uint32
	for _, p := range []*uint32{&dim, &metric, &m, &efC, &efS} {
		if err := read(p); err != nil {
			return nil, fmt.Errorf("cvec: load hnsw config: %w", err)
		}
	}
	if dim == 0 || dim > 4096 {
		return nil, fmt.Errorf("cvec: load hnsw: %w: invalid dimension %d", ErrCorrupt, dim)
	}
	var ml float64
	if err := read(&ml); err != nil {
		return nil, fmt.Errorf("cvec: load hnsw config: %w", err)
	}

	var numSlots, activeCount, maxLev uint32
	var entryPoint uint32
	if err := read(&numSlots); err != nil {
		return nil, err
	}
	if err := read(&activeCount); err != nil {
		return nil, err
	}
	if err := read(&maxLev); err != nil {
		return nil, err
	}
	if err := read(&entryPoint); err != nil {
		return nil, err
	}

	var freeCount uint32
	if err := read(&freeCount); err != nil {
		return nil, err
	}
	free := make([]uint32, freeCount)
	for i := range free {
		if err := read(&free[i]); err != nil {
			return nil, err
		}
	}

	nodes := make([]*hnswNode, numSlots)
	for i := uint32(0); i < numSlots; i++ {
		var active uint8
		if err := read(&active); err != nil {
			return nil, err
		}
		if active == 0 {
			continue
		}

		var id uint64
		if err := read(&id); err != nil {
			return nil, err
		}
		var level, nodeDim uint32
		if err := read(&level); err != nil {
			return nil, err
		}
		if err := read(&nodeDim); err != nil {
			return nil, err
		}
		if nodeDim != dim {
			return nil, fmt.Errorf("cvec: load hnsw: %w: node dimension %d != %d", ErrCorrupt, nodeDim, dim)
		}
		if level >= MaxLevel {
			return nil, fmt.Errorf("cvec: load hnsw: %w: node level %d out of range", ErrCorrupt, level)
		}

		vec := make([]float32, nodeDim)
		for j := range vec {
			if err := read(&vec[j]); err != nil {
				return nil, err
			}
		}

		neighbors := make([][]uint32, level+1)
		for lev := uint32(0); lev <= level; lev++ {
			var nf uint32
			if err := read(&nf); err != nil {
				return nil, err
			}
			if nf > 0 {
				neighbors[lev] = make([]uint32, nf)
				for k := range neighbors[lev] {
					if err := read(&neighbors[lev][k]); err != nil {
						return nil, err
					}
				}
			}
		}

		nodes[i] = &hnswNode{id: id, vector: vec, level: int(level), neighbors: neighbors}
	}

	cfg := HNSWConfig{
		Dim:            int(dim),
		Metric:         Metric(metric),
		M:              int(m),
		EfConstruction: int(efC),
		EfSearch:       int(efS),
		Ml:             ml,
	}
	cfg.setDefaults()

	h := &HNSW{
		cfg:        cfg,
		rng:        newRNG(),
		nodes:      nodes,
		free:       free,
		entryPoint: entryPoint,
		maxLevel:   int(maxLev),
		count:      int(activeCount),
	}
	h.checksum = h.computeChecksum()
	h.lastModified = nowUnix()
	return h, nil
}
