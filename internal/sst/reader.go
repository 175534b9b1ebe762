package sst

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/bobboyms/kvengine/internal/kverrors"
)

// indexEntry is one in-memory (key, data-block offset) mapping loaded
// from an SST's index block at Open time.
type indexEntry struct {
	key    []byte
	offset int64
}

// Reader serves point lookups against one immutable SST file. The index
// is loaded once, at Open, and retained for the reader's lifetime; Get
// never re-reads the index block.
type Reader struct {
	file  *os.File
	path  string
	index []indexEntry
}

// Open reads the footer from the last 16 bytes of path, then the index
// block it points at, into an ordered in-memory mapping from key to file
// offset. A malformed footer or an out-of-range offset is a CorruptError.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sst: open %s: %w", path, err)
	}

	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("sst: stat %s: %w", path, err)
	}
	if info.Size() < FooterSize {
		return nil, &kverrors.CorruptError{Path: path, Reason: "file shorter than footer"}
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, info.Size()-FooterSize); err != nil {
		return nil, fmt.Errorf("sst: read footer of %s: %w", path, err)
	}
	indexOffset := int64(getUint64(footer[0:8]))
	indexCount := getUint64(footer[8:16])

	limit := info.Size() - FooterSize
	if indexOffset < preambleSize || indexOffset > limit {
		return nil, &kverrors.CorruptError{Path: path, Reason: "index block offset out of range"}
	}

	index := make([]indexEntry, 0, indexCount)
	cur := indexOffset
	for i := uint64(0); i < indexCount; i++ {
		if cur+4 > limit {
			return nil, &kverrors.CorruptError{Path: path, Reason: "index block truncated"}
		}
		klenBuf := make([]byte, 4)
		if _, err := f.ReadAt(klenBuf, cur); err != nil {
			return nil, fmt.Errorf("sst: read index entry of %s: %w", path, err)
		}
		klen := int64(getUint32(klenBuf))
		cur += 4

		if klen < 0 || cur+klen+8 > limit {
			return nil, &kverrors.CorruptError{Path: path, Reason: "index entry truncated"}
		}
		key := make([]byte, klen)
		if _, err := f.ReadAt(key, cur); err != nil {
			return nil, fmt.Errorf("sst: read index key of %s: %w", path, err)
		}
		cur += klen

		offBuf := make([]byte, 8)
		if _, err := f.ReadAt(offBuf, cur); err != nil {
			return nil, fmt.Errorf("sst: read index offset of %s: %w", path, err)
		}
		cur += 8

		offset := int64(getUint64(offBuf))
		if offset < preambleSize || offset >= indexOffset {
			return nil, &kverrors.CorruptError{Path: path, Reason: "data entry offset out of range"}
		}

		index = append(index, indexEntry{key: key, offset: offset})
	}

	return &Reader{file: f, path: path, index: index}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Get looks key up in the in-memory index in O(log n); on a hit it seeks
// to the recorded offset and re-reads klen+key+vlen+value from the data
// block. It returns (nil, false, nil) on a miss.
func (r *Reader) Get(key []byte) ([]byte, bool, error) {
	i := sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].key, key) >= 0
	})
	if i >= len(r.index) || !bytes.Equal(r.index[i].key, key) {
		return nil, false, nil
	}

	off := r.index[i].offset

	klenBuf := make([]byte, 4)
	if _, err := r.file.ReadAt(klenBuf, off); err != nil {
		return nil, false, &kverrors.CorruptError{Path: r.path, Reason: "entry offset unreadable"}
	}
	klen := int64(getUint32(klenBuf))

	keyBuf := make([]byte, klen)
	if _, err := r.file.ReadAt(keyBuf, off+4); err != nil {
		return nil, false, fmt.Errorf("sst: read entry key of %s: %w", r.path, err)
	}

	vlenBuf := make([]byte, 4)
	if _, err := r.file.ReadAt(vlenBuf, off+4+klen); err != nil {
		return nil, false, fmt.Errorf("sst: read entry vlen of %s: %w", r.path, err)
	}
	vlen := int64(getUint32(vlenBuf))

	value := make([]byte, vlen)
	if vlen > 0 {
		if _, err := r.file.ReadAt(value, off+4+klen+4); err != nil {
			return nil, false, fmt.Errorf("sst: read entry value of %s: %w", r.path, err)
		}
	}

	return value, true, nil
}
