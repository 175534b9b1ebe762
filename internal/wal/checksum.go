package wal

import "hash/crc32"

// castagnoliTable is the CRC-32C polynomial table, which has hardware
// acceleration on modern CPUs (SSE4.2/ARMv8).
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// checksum computes the CRC32 of op ∥ klen ∥ key ∥ vlen ∥ value, per
// spec §4.2. The LSN is intentionally excluded from the checksum input.
func checksum(op byte, klenBuf, key, vlenBuf, value []byte) uint32 {
	h := crc32.New(castagnoliTable)
	h.Write([]byte{op})
	h.Write(klenBuf)
	h.Write(key)
	h.Write(vlenBuf)
	h.Write(value)
	return h.Sum32()
}
