package wal

import "encoding/binary"

// Operation tags for a WAL record's op byte, per spec §4.2.
const (
	OpPut    uint8 = 1
	OpDelete uint8 = 2
)

// maxFieldSize bounds klen/vlen so a corrupted length field can never
// trigger a multi-gigabyte allocation before the checksum has a chance to
// reject the record.
const maxFieldSize = 1 << 30

// Record is the logical contents of one WAL entry: {lsn, op, key, value?}.
type Record struct {
	LSN   uint64
	Op    uint8
	Key   []byte
	Value []byte
}

// encode serializes the record as
// [lsn:8B][op:1B][klen:4B][key][vlen:4B][value][crc32:4B], all big-endian.
// For Delete records Value must be empty, matching vlen=0 on disk.
func (r *Record) encode() []byte {
	klen := len(r.Key)
	vlen := len(r.Value)
	buf := make([]byte, 8+1+4+klen+4+vlen+4)

	binary.BigEndian.PutUint64(buf[0:8], r.LSN)
	buf[8] = r.Op
	binary.BigEndian.PutUint32(buf[9:13], uint32(klen))
	copy(buf[13:13+klen], r.Key)

	vlenOff := 13 + klen
	binary.BigEndian.PutUint32(buf[vlenOff:vlenOff+4], uint32(vlen))
	copy(buf[vlenOff+4:vlenOff+4+vlen], r.Value)

	crcOff := vlenOff + 4 + vlen
	crc := checksum(r.Op, buf[9:13], r.Key, buf[vlenOff:vlenOff+4], r.Value)
	binary.BigEndian.PutUint32(buf[crcOff:crcOff+4], crc)

	return buf
}
