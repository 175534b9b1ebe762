package wal

import "encoding/binary"

// HeaderSize is the fixed 16-byte WAL file header: bytes 0..8 hold the
// current end-of-log offset, bytes 8..16 the most recently appended
// record's LSN, both big-endian (spec §4.2).
const HeaderSize = 16

type fileHeader struct {
	endOffset uint64
	lastLSN   uint64
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], h.endOffset)
	binary.BigEndian.PutUint64(buf[8:16], h.lastLSN)
	return buf
}

// decodeHeader parses buf as a WAL header. ok is false if buf is short
// (fewer than HeaderSize bytes were read), which the caller treats as a
// fresh, empty log rather than an error.
func decodeHeader(buf []byte) (h fileHeader, ok bool) {
	if len(buf) < HeaderSize {
		return fileHeader{}, false
	}
	h.endOffset = binary.BigEndian.Uint64(buf[0:8])
	h.lastLSN = binary.BigEndian.Uint64(buf[8:16])
	return h, true
}
