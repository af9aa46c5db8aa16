package cvec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// fileMagic is "CVEC" read as a little-endian uint32, per
// SPEC_FULL.md §6: 0x43564543.
const fileMagic uint32 = 0x43564543

const fileVersion uint32 = 1

// headerSize is the fixed on-disk header size in bytes: magic(4) +
// version(4) + dimension(4) + metric(4) + vectorCount(8) + nextID(8) +
// created(8) + modified(8) + 32 reserved.
const headerSize = 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 32

// recordHeaderSize is the fixed portion of each record, before the
// payload: id(8) + dimension(4) + timestamp(8) + deleted(1) + 7 reserved.
const recordHeaderSize = 8 + 4 + 8 + 1 + 7

// deletedFlagOffset is the byte offset of the deleted flag within a
// record header: id(8) + dimension(4) + timestamp(8). Delete rewrites
// this one byte in place rather than the whole header.
const deletedFlagOffset = 8 + 4 + 8

// fileHeader is the store file's fixed-size preamble.
type fileHeader struct {
	dimension uint32
	metric    Metric
	vecCount  uint64
	nextID    uint64
	created   uint64
	modified  uint64
}

func (h *fileHeader) write(w io.WriteSeeker) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var buf [headerSize]byte
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], fileMagic)
	le.PutUint32(buf[4:8], fileVersion)
	le.PutUint32(buf[8:12], h.dimension)
	le.PutUint32(buf[12:16], uint32(h.metric))
	le.PutUint64(buf[16:24], h.vecCount)
	le.PutUint64(buf[24:32], h.nextID)
	le.PutUint64(buf[32:40], h.created)
	le.PutUint64(buf[40:48], h.modified)
	// Remaining 32 bytes are reserved and left zero.
	_, err := w.Write(buf[:])
	return err
}

func readFileHeader(r io.Reader) (fileHeader, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fileHeader{}, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	le := binary.LittleEndian
	magic := le.Uint32(buf[0:4])
	if magic != fileMagic {
		return fileHeader{}, fmt.Errorf("cvec: %w: bad magic %#x", ErrCorrupt, magic)
	}
	version := le.Uint32(buf[4:8])
	if version != fileVersion {
		return fileHeader{}, fmt.Errorf("cvec: %w: unsupported version %d", ErrCorrupt, version)
	}
	h := fileHeader{
		dimension: le.Uint32(buf[8:12]),
		metric:    Metric(le.Uint32(buf[12:16])),
		vecCount:  le.Uint64(buf[16:24]),
		nextID:    le.Uint64(buf[24:32]),
		created:   le.Uint64(buf[32:40]),
		modified:  le.Uint64(buf[40:48]),
	}
	if h.dimension == 0 || h.dimension > 4096 {
		return fileHeader{}, fmt.Errorf("cvec: %w: invalid dimension %d", ErrCorrupt, h.dimension)
	}
	return h, nil
}

// recordHeader is the fixed portion of a stored record.
type recordHeader struct {
	id        uint64
	dimension uint32
	timestamp uint64
	deleted   bool
}

func writeRecord(w io.Writer, rh recordHeader, payload []float32) error {
	var buf [recordHeaderSize]byte
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], rh.id)
	le.PutUint32(buf[8:12], rh.dimension)
	le.PutUint64(buf[12:20], rh.timestamp)
	if rh.deleted {
		buf[deletedFlagOffset] = 1
	}
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	payloadBuf := make([]byte, len(payload)*4)
	for i, f := range payload {
		le.PutUint32(payloadBuf[i*4:], math.Float32bits(f))
	}
	if _, err := w.Write(payloadBuf); err != nil {
		return fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	return nil
}

func readRecordHeader(r io.Reader) (recordHeader, error) {
	var buf [recordHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return recordHeader{}, err
	}
	le := binary.LittleEndian
	return recordHeader{
		id:        le.Uint64(buf[0:8]),
		dimension: le.Uint32(buf[8:12]),
		timestamp: le.Uint64(buf[12:20]),
		deleted:   buf[deletedFlagOffset] != 0,
	}, nil
}

func readPayload(r io.Reader, dim uint32) ([]float32, error) {
	buf := make([]byte, int(dim)*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("cvec: %w: %v", ErrFileIO, err)
	}
	le := binary.LittleEndian
	out := make([]float32, dim)
	for i := range out {
		out[i] = math.Float32frombits(le.Uint32(buf[i*4:]))
	}
	return out, nil
}

// recordSize returns the total on-disk size of a record with the given
// dimension.
func recordSize(dim uint32) int64 {
	return recordHeaderSize + int64(dim)*4
}
