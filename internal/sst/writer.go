package sst

import (
	"bufio"
	"fmt"
	"os"
)

// Writer produces one SST file. The engine is responsible for choosing an
// unused path (typically a temp path, fsynced and renamed into place only
// after WriteAll succeeds — see spec §4.3's atomicity contract; the engine
// does that rename with natefinch/atomic's ReplaceFile, and DESIGN.md's
// dependency notes explain why its WriteFile is not used for this file).
type Writer struct {
	file   *os.File
	bw     *bufio.Writer
	path   string
	offset int64
}

// Create opens path, creating or truncating it, ready for WriteAll.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("sst: create %s: %w", path, err)
	}
	return &Writer{
		file: f,
		bw:   bufio.NewWriterSize(f, 64*1024),
		path: path,
	}, nil
}

// WriteAll writes the preamble, every entry in the given order (assumed
// already sorted ascending by key — spec P10), the index block, and the
// 16-byte footer, then fsyncs the file. The entries' relative order is
// preserved verbatim in the data block.
func (w *Writer) WriteAll(entries []Entry) error {
	if err := w.writeUint64(uint64(len(entries))); err != nil {
		return err
	}

	offsets := make([]int64, len(entries))
	for i, e := range entries {
		offsets[i] = w.offset
		if err := w.writeDataEntry(e); err != nil {
			return err
		}
	}

	indexOffset := w.offset
	for i, e := range entries {
		if err := w.writeIndexEntry(e.Key, uint64(offsets[i])); err != nil {
			return err
		}
	}

	footer := make([]byte, FooterSize)
	putUint64(footer[0:8], uint64(indexOffset))
	putUint64(footer[8:16], uint64(len(entries)))
	if err := w.writeRaw(footer); err != nil {
		return err
	}

	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("sst: flush %s: %w", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sst: fsync %s: %w", w.path, err)
	}
	return nil
}

// Close closes the underlying file. Callers that rename the file into
// place should Close first.
func (w *Writer) Close() error {
	return w.file.Close()
}

func (w *Writer) writeUint64(v uint64) error {
	buf := make([]byte, 8)
	putUint64(buf, v)
	return w.writeRaw(buf)
}

func (w *Writer) writeDataEntry(e Entry) error {
	klenBuf := make([]byte, 4)
	putUint32(klenBuf, uint32(len(e.Key)))
	if err := w.writeRaw(klenBuf); err != nil {
		return err
	}
	if err := w.writeRaw(e.Key); err != nil {
		return err
	}
	vlenBuf := make([]byte, 4)
	putUint32(vlenBuf, uint32(len(e.Value)))
	if err := w.writeRaw(vlenBuf); err != nil {
		return err
	}
	return w.writeRaw(e.Value)
}

func (w *Writer) writeIndexEntry(key []byte, offset uint64) error {
	klenBuf := make([]byte, 4)
	putUint32(klenBuf, uint32(len(key)))
	if err := w.writeRaw(klenBuf); err != nil {
		return err
	}
	if err := w.writeRaw(key); err != nil {
		return err
	}
	offBuf := make([]byte, 8)
	putUint64(offBuf, offset)
	return w.writeRaw(offBuf)
}

func (w *Writer) writeRaw(b []byte) error {
	n, err := w.bw.Write(b)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("sst: write to %s: %w", w.path, err)
	}
	return nil
}
