// Package engine composes the trie memtable, the WAL, and the set of SST
// readers into the single-directory storage engine of spec §4.4: it
// sequences Put/Delete/Get, triggers flushes, and recovers on open.
//
// Grounded on the teacher repo's pkg/storage/engine.go for the overall
// shape (an orchestrator struct holding a WAL writer, an LSN counter, and
// a set of on-disk readers) and pkg/storage/lsn_tracker.go for the atomic
// LSN counter, adapted from a multi-table document store down to a single
// byte-keyed memtable/SST pair; and on
// intellect4all-storage-engines/lsm/lsm.go for the atomic-pointer
// memtable-swap-on-flush pattern (mirrored here from
// other_examples/e0199ad2_sukryu-golite's lsmtree.go, which made the same
// choice) so that Get never blocks behind a flush in progress.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"

	"github.com/bobboyms/kvengine/internal/kverrors"
	"github.com/bobboyms/kvengine/internal/sst"
	"github.com/bobboyms/kvengine/internal/trie"
	"github.com/bobboyms/kvengine/internal/wal"

	"github.com/google/uuid"
)

// walFileName is the single current WAL's fixed name (spec §6).
const walFileName = "wal.log"

// Engine is one persistent key-value store bound to a directory. All
// exported methods are safe for concurrent use: Put, Delete, and Flush
// serialize against each other via writeMu (spec §5's single-writer
// model); Get takes no lock and is safe to call concurrently with a
// writer, relying on the memtable pointer swap and the SST reader list
// swap both being atomic.
type Engine struct {
	dir              string
	memtableMaxBytes uint64
	nonce            uuid.UUID

	writeMu sync.Mutex // serializes Put/Delete/Flush

	memtable      atomic.Pointer[trie.Trie]
	memtableBytes atomic.Uint64

	sstReaders atomic.Pointer[[]*sst.Reader] // oldest-first

	wal *wal.Writer

	nextLSN   atomic.Uint64
	nextSSTID atomic.Uint64
}

// Open reconstructs the SST set from dir, replays the WAL into a fresh
// memtable, and returns a ready Engine (spec §4.4 open()).
func Open(opts Options) (*Engine, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("engine: Options.Dir must not be empty")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("engine: mkdir %s: %w", opts.Dir, err)
	}

	walPath := filepath.Join(opts.Dir, walFileName)
	w, err := wal.Open(walPath, false)
	if err != nil {
		return nil, err
	}

	readers, maxID, err := openExistingSSTs(opts.Dir)
	if err != nil {
		w.Close()
		return nil, err
	}

	e := &Engine{
		dir:              opts.Dir,
		memtableMaxBytes: opts.MemtableMaxBytes,
		nonce:            uuid.New(),
		wal:              w,
	}
	e.memtable.Store(trie.New())
	e.sstReaders.Store(&readers)
	e.nextSSTID.Store(maxID)
	e.nextLSN.Store(w.LastLSN())

	if err := e.replay(walPath); err != nil {
		closeAll(w, readers)
		return nil, err
	}

	return e, nil
}

// openExistingSSTs enumerates sst-*.dat, sorts by filename lexicographically
// (which, with zero-padded monotone ids, yields oldest-first creation
// order), and opens each as an SST reader.
func openExistingSSTs(dir string) (readers []*sst.Reader, maxID uint64, err error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("engine: read dir %s: %w", dir, err)
	}

	var names []string
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		if _, ok := parseSSTID(de.Name()); ok {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		id, _ := parseSSTID(name)
		if id > maxID {
			maxID = id
		}
		r, oerr := sst.Open(filepath.Join(dir, name))
		if oerr != nil {
			closeAll(nil, readers)
			return nil, 0, oerr
		}
		readers = append(readers, r)
	}
	return readers, maxID, nil
}

func closeAll(w *wal.Writer, readers []*sst.Reader) {
	if w != nil {
		w.Close()
	}
	for _, r := range readers {
		r.Close()
	}
}

// replay reads every WAL record, sorts by LSN ascending, applies Put as
// trie Put and Delete as trie Remove into a fresh memtable, and sets
// memtable_bytes to the sum of surviving key+value lengths (spec §4.4
// replay()). The WAL reader itself already stops at the first bad or
// truncated record.
func (e *Engine) replay(walPath string) error {
	r, err := wal.OpenReader(walPath)
	if err != nil {
		return err
	}
	defer r.Close()

	records, err := r.ReadAll()
	if err != nil {
		return err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].LSN < records[j].LSN })

	mt := trie.New()
	for _, rec := range records {
		switch rec.Op {
		case wal.OpPut:
			if _, _, err := mt.Put(rec.Key, rec.Value); err != nil {
				return fmt.Errorf("engine: replay put lsn=%d: %w", rec.LSN, err)
			}
		case wal.OpDelete:
			if _, _, err := mt.Remove(rec.Key); err != nil {
				return fmt.Errorf("engine: replay delete lsn=%d: %w", rec.LSN, err)
			}
		}
	}

	var total uint64
	for _, ent := range mt.IterAll() {
		total += uint64(len(ent.Key) + len(ent.Value))
	}

	e.memtable.Store(mt)
	e.memtableBytes.Store(total)
	return nil
}

// Put durably appends a Put record, then applies it to the memtable. If
// the incoming pair would push memtable_bytes at or past the configured
// budget, a flush runs first. It returns the previous value (if any).
func (e *Engine) Put(key, value []byte) (prev []byte, hadPrev bool, err error) {
	if len(key) == 0 {
		return nil, false, kverrors.ErrInvalidKey
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.memtableBytes.Load()+uint64(len(key))+uint64(len(value)) >= e.memtableMaxBytes {
		if err := e.flushLocked(); err != nil {
			return nil, false, err
		}
	}

	lsn := e.nextLSN.Add(1)

	if err := e.wal.AppendPut(lsn, key, value); err != nil {
		return nil, false, fmt.Errorf("engine: wal append put: %w", err)
	}

	mt := e.memtable.Load()
	prev, hadPrev, err = mt.Put(key, value)
	if err != nil {
		return nil, false, err
	}
	e.memtableBytes.Add(uint64(len(key)) + uint64(len(value)))

	return prev, hadPrev, nil
}

// Delete durably appends a Delete record, then removes key from the
// memtable. The flush precondition is not consulted for deletes (spec
// §4.4/§9).
func (e *Engine) Delete(key []byte) (prev []byte, hadPrev bool, err error) {
	if len(key) == 0 {
		return nil, false, kverrors.ErrInvalidKey
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	lsn := e.nextLSN.Add(1)

	if err := e.wal.AppendDelete(lsn, key); err != nil {
		return nil, false, fmt.Errorf("engine: wal append delete: %w", err)
	}

	mt := e.memtable.Load()
	return mt.Remove(key)
}

// Get looks up key in the memtable, then probes SSTs newest-first,
// returning the first hit (spec §4.4 get()).
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, kverrors.ErrInvalidKey
	}

	mt := e.memtable.Load()
	if v, ok, _ := mt.Get(key); ok {
		return v, true, nil
	}

	readers := *e.sstReaders.Load()
	for i := len(readers) - 1; i >= 0; i-- {
		v, ok, err := readers[i].Get(key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
	}

	return nil, false, nil
}

// Flush forces the current memtable to disk as a new SST and truncates
// the WAL, exactly as a Put-triggered flush would (spec §4.4 flush()).
// Exposed so callers can trigger a flush mid-sequence (P6).
func (e *Engine) Flush() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.flushLocked()
}

// flushLocked assumes writeMu is held.
func (e *Engine) flushLocked() error {
	mt := e.memtable.Load()
	entries := mt.IterAll()

	sstEntries := make([]sst.Entry, len(entries))
	for i, ent := range entries {
		sstEntries[i] = sst.Entry{Key: ent.Key, Value: ent.Value}
	}

	id := e.nextSSTID.Add(1)
	finalPath := filepath.Join(e.dir, sstFileName(id))
	tempPath := fmt.Sprintf("%s.%s.tmp", finalPath, e.nonce.String())

	w, err := sst.Create(tempPath)
	if err != nil {
		return fmt.Errorf("engine: flush: %w", err)
	}
	if err := w.WriteAll(sstEntries); err != nil {
		w.Close()
		os.Remove(tempPath)
		return fmt.Errorf("engine: flush: %w", err)
	}
	if err := w.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("engine: flush: close temp sst: %w", err)
	}

	// Atomic rename-into-place: a reader that opens sst-*.dat either sees
	// a complete file or does not see the file at all (spec §4.3).
	if err := natomic.ReplaceFile(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("engine: flush: rename sst into place: %w", err)
	}

	reader, err := sst.Open(finalPath)
	if err != nil {
		return fmt.Errorf("engine: flush: open new sst: %w", err)
	}

	prevReaders := *e.sstReaders.Load()
	newReaders := make([]*sst.Reader, 0, len(prevReaders)+1)
	newReaders = append(newReaders, prevReaders...)
	newReaders = append(newReaders, reader)
	e.sstReaders.Store(&newReaders)

	e.memtable.Store(trie.New())
	e.memtableBytes.Store(0)

	// The WAL must not be truncated until the SST is durable (it already
	// is, above), otherwise a crash between truncate and SST-durable
	// would lose data. Only after the truncated WAL is itself fsynced is
	// the flush considered complete.
	walPath := e.wal.Path()
	if err := e.wal.Close(); err != nil {
		return fmt.Errorf("engine: flush: close old wal: %w", err)
	}
	newWAL, err := wal.Open(walPath, true)
	if err != nil {
		return fmt.Errorf("engine: flush: reopen truncated wal: %w", err)
	}
	e.wal = newWAL
	// nextLSN is left untouched: LSNs keep climbing across a flush within
	// the same process (P8), even though the newly truncated WAL's own
	// header starts back at 0 — only a fresh process Open recomputes
	// nextLSN from the (now-empty) WAL, same as the source's accepted
	// behavior documented for WAL reopen.

	return nil
}

// Close releases the WAL file and every open SST reader.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var err error
	if werr := e.wal.Close(); werr != nil {
		err = werr
	}
	for _, r := range *e.sstReaders.Load() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Dir returns the directory this engine is bound to.
func (e *Engine) Dir() string {
	return e.dir
}
