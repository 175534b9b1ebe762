// Package sst implements the immutable sorted-string-table file format one
// engine flush produces (spec §4.3):
//
//	[entry_count: 8B]                              preamble
//	[klen:4B][key][vlen:4B][value] ...              data block, ascending key order
//	[klen:4B][key][file_offset_of_entry:8B] ...      index block, same order
//	[index_block_offset:8B][index_entry_count:8B]    16-byte footer
package sst

import "encoding/binary"

// FooterSize is the fixed trailer: index block offset plus index entry
// count, both big-endian.
const FooterSize = 16

// preambleSize is the entry-count prefix before the data block.
const preambleSize = 8

// Entry is one (key, value) pair to be written to a new SST, in the
// ascending bytewise order the memtable's iteration already produced.
type Entry struct {
	Key   []byte
	Value []byte
}

func putUint32(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }
func putUint64(buf []byte, v uint64) { binary.BigEndian.PutUint64(buf, v) }
func getUint32(buf []byte) uint32    { return binary.BigEndian.Uint32(buf) }
func getUint64(buf []byte) uint64    { return binary.BigEndian.Uint64(buf) }
