package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// errCorrupt is returned internally by readRecord when a record's CRC
// does not match; ReadAll treats it exactly like truncation (stop, return
// what was parsed so far), never surfacing it to the caller as an error.
var errCorrupt = errors.New("wal: checksum mismatch")

// Reader sequentially replays a WAL file written by Writer.
type Reader struct {
	file *os.File
}

// OpenReader opens path read-only.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s for read: %w", path, err)
	}
	return &Reader{file: f}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll seeks past the 16-byte header and parses records in file order.
// On the first CRC mismatch or truncated (unexpected-EOF) record it stops
// and returns only the records parsed so far; a clean EOF at a record
// boundary is not an error and is likewise not reported as one (spec
// §4.2). Only a failure to seek past the header is surfaced as an error.
func (r *Reader) ReadAll() ([]*Record, error) {
	if _, err := r.file.Seek(HeaderSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wal: seek past header: %w", err)
	}

	var records []*Record
	for {
		rec, err := readRecord(r.file)
		if err != nil {
			break
		}
		records = append(records, rec)
	}
	return records, nil
}

func readRecord(r io.Reader) (*Record, error) {
	var lsnBuf [8]byte
	if _, err := io.ReadFull(r, lsnBuf[:]); err != nil {
		return nil, err
	}

	var opBuf [1]byte
	if _, err := io.ReadFull(r, opBuf[:]); err != nil {
		return nil, err
	}

	var klenBuf [4]byte
	if _, err := io.ReadFull(r, klenBuf[:]); err != nil {
		return nil, err
	}
	klen := binary.BigEndian.Uint32(klenBuf[:])
	if klen > maxFieldSize {
		return nil, errCorrupt
	}
	key := make([]byte, klen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}

	var vlenBuf [4]byte
	if _, err := io.ReadFull(r, vlenBuf[:]); err != nil {
		return nil, err
	}
	vlen := binary.BigEndian.Uint32(vlenBuf[:])
	if vlen > maxFieldSize {
		return nil, errCorrupt
	}
	value := make([]byte, vlen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, err
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, err
	}
	wantCRC := binary.BigEndian.Uint32(crcBuf[:])
	gotCRC := checksum(opBuf[0], klenBuf[:], key, vlenBuf[:], value)
	if gotCRC != wantCRC {
		return nil, errCorrupt
	}

	return &Record{
		LSN:   binary.BigEndian.Uint64(lsnBuf[:]),
		Op:    opBuf[0],
		Key:   key,
		Value: value,
	}, nil
}
