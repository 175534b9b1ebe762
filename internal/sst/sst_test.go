package sst

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bobboyms/kvengine/internal/kverrors"
)

func writeTestSST(t *testing.T, path string, entries []Entry) {
	t.Helper()
	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.WriteAll(entries); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSST_WriteThenGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst-000001.dat")
	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	writeTestSST(t, path, entries)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	for _, e := range entries {
		v, ok, err := r.Get(e.Key)
		if err != nil || !ok || string(v) != string(e.Value) {
			t.Fatalf("Get(%q) = %q, %v, %v; want %q, true, nil", e.Key, v, ok, err, e.Value)
		}
	}

	if _, ok, err := r.Get([]byte("missing")); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestSST_EmptyValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst-000001.dat")
	writeTestSST(t, path, []Entry{{Key: []byte("k"), Value: []byte{}}})

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	v, ok, err := r.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
	if len(v) != 0 {
		t.Fatalf("value = %v, want empty", v)
	}
}

func TestSST_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst-000001.dat")
	writeTestSST(t, path, nil)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if _, ok, err := r.Get([]byte("anything")); err != nil || ok {
		t.Fatalf("Get on empty table = ok=%v err=%v", ok, err)
	}
}

func TestSST_MalformedFooterIsCorruptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst-000001.dat")
	if err := os.WriteFile(path, []byte("too short"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Open(path)
	var ce *kverrors.CorruptError
	if err == nil {
		t.Fatal("Open succeeded on a malformed file, want CorruptError")
	}
	if ce2, ok := err.(*kverrors.CorruptError); ok {
		ce = ce2
	} else {
		t.Fatalf("Open error = %v (%T), want *kverrors.CorruptError", err, err)
	}
	_ = ce
}

func TestSST_OutOfRangeIndexOffsetIsCorruptError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst-000001.dat")
	writeTestSST(t, path, []Entry{{Key: []byte("a"), Value: []byte("1")}})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		t.Fatalf("open for corruption: %v", err)
	}
	badFooter := make([]byte, FooterSize)
	putUint64(badFooter[0:8], uint64(info.Size()))
	putUint64(badFooter[8:16], 1)
	if _, err := f.WriteAt(badFooter, info.Size()-FooterSize); err != nil {
		t.Fatalf("write bad footer: %v", err)
	}
	f.Close()

	_, err = Open(path)
	if _, ok := err.(*kverrors.CorruptError); !ok {
		t.Fatalf("Open error = %v (%T), want *kverrors.CorruptError", err, err)
	}
}

// TestSST_SortStable exercises P10: the first key supplied (in the order
// iter_all produced upstream) is the first entry of the SST's data block.
func TestSST_SortStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst-000001.dat")
	entries := []Entry{
		{Key: []byte("aaa"), Value: []byte("1")},
		{Key: []byte("bbb"), Value: []byte("2")},
		{Key: []byte("ccc"), Value: []byte("3")},
	}
	writeTestSST(t, path, entries)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// First data entry starts right after the 8-byte preamble: klen(4)=3,
	// key="aaa" should appear at offset 8+4.
	if string(raw[12:15]) != "aaa" {
		t.Fatalf("first data entry key = %q, want aaa", raw[12:15])
	}
}
