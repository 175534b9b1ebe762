package trie

import (
	"bytes"
	"sort"
	"sync"
	"testing"

	"github.com/bobboyms/kvengine/internal/kverrors"
)

func TestTrie_EmptyKeyRejected(t *testing.T) {
	tr := New()

	if _, _, err := tr.Get(nil); err != kverrors.ErrInvalidKey {
		t.Fatalf("Get(nil) error = %v, want ErrInvalidKey", err)
	}
	if err := tr.Insert([]byte{}, []byte("v")); err != kverrors.ErrInvalidKey {
		t.Fatalf("Insert empty key error = %v, want ErrInvalidKey", err)
	}
	if _, _, err := tr.Put([]byte{}, []byte("v")); err != kverrors.ErrInvalidKey {
		t.Fatalf("Put empty key error = %v, want ErrInvalidKey", err)
	}
	if _, _, err := tr.Remove([]byte{}); err != kverrors.ErrInvalidKey {
		t.Fatalf("Remove empty key error = %v, want ErrInvalidKey", err)
	}
}

func TestTrie_GetMissing(t *testing.T) {
	tr := New()
	v, ok, err := tr.Get([]byte("nope"))
	if err != nil || ok || v != nil {
		t.Fatalf("Get(missing) = %v, %v, %v; want nil, false, nil", v, ok, err)
	}
}

func TestTrie_InsertThenGet(t *testing.T) {
	tr := New()
	if err := tr.Insert([]byte("foo"), []byte("bar")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, ok, err := tr.Get([]byte("foo"))
	if err != nil || !ok || string(v) != "bar" {
		t.Fatalf("Get(foo) = %q, %v, %v; want bar, true, nil", v, ok, err)
	}
}

func TestTrie_InsertDuplicateFails(t *testing.T) {
	tr := New()
	if err := tr.Insert([]byte("foo"), []byte("bar")); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := tr.Insert([]byte("foo"), []byte("baz"))
	var aw *kverrors.AlreadyWrittenError
	if err == nil {
		t.Fatal("second Insert succeeded, want AlreadyWrittenError")
	}
	if !matchesAs(err, &aw) {
		t.Fatalf("second Insert error = %v (%T), want *AlreadyWrittenError", err, err)
	}
	if string(aw.Old) != "bar" {
		t.Fatalf("AlreadyWrittenError.Old = %q, want bar", aw.Old)
	}
}

func matchesAs(err error, target **kverrors.AlreadyWrittenError) bool {
	aw, ok := err.(*kverrors.AlreadyWrittenError)
	if ok {
		*target = aw
	}
	return ok
}

// TestTrie_PutOverwrite exercises P2: after put(k,v1) then put(k,v2),
// get(k) = v2 and the second call reports v1 as the previous value.
func TestTrie_PutOverwrite(t *testing.T) {
	tr := New()
	prev, had, err := tr.Put([]byte("a"), []byte("1"))
	if err != nil || had || prev != nil {
		t.Fatalf("first Put = %v, %v, %v; want nil, false, nil", prev, had, err)
	}
	prev, had, err = tr.Put([]byte("a"), []byte("2"))
	if err != nil || !had || string(prev) != "1" {
		t.Fatalf("second Put = %q, %v, %v; want 1, true, nil", prev, had, err)
	}
	v, ok, _ := tr.Get([]byte("a"))
	if !ok || string(v) != "2" {
		t.Fatalf("Get after overwrite = %q, %v; want 2, true", v, ok)
	}
}

// TestTrie_PutRemove exercises P3: put then remove with no flush leaves
// the key absent.
func TestTrie_PutRemove(t *testing.T) {
	tr := New()
	if _, _, err := tr.Put([]byte("d"), []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	prev, had, err := tr.Remove([]byte("d"))
	if err != nil || !had || string(prev) != "x" {
		t.Fatalf("Remove = %q, %v, %v; want x, true, nil", prev, had, err)
	}
	if _, ok, _ := tr.Get([]byte("d")); ok {
		t.Fatal("Get after Remove found a value, want absent")
	}
}

func TestTrie_RemoveMissing(t *testing.T) {
	tr := New()
	prev, had, err := tr.Remove([]byte("ghost"))
	if err != nil || had || prev != nil {
		t.Fatalf("Remove(missing) = %v, %v, %v; want nil, false, nil", prev, had, err)
	}
}

// TestTrie_EmptyValueAllowed ensures an empty (but present) value is
// distinguishable from "absent".
func TestTrie_EmptyValueAllowed(t *testing.T) {
	tr := New()
	if err := tr.Insert([]byte("k"), []byte{}); err != nil {
		t.Fatalf("Insert empty value: %v", err)
	}
	v, ok, err := tr.Get([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v; want present", v, ok, err)
	}
	if len(v) != 0 {
		t.Fatalf("Get value = %v, want empty", v)
	}
}

// TestTrie_IterAllOrdered exercises P9: iter_all yields strictly ascending
// bytewise key order.
func TestTrie_IterAllOrdered(t *testing.T) {
	tr := New()
	keys := []string{"banana", "apple", "cherry", "a", "ab", "b", "\x00", "\xff"}
	for _, k := range keys {
		if err := tr.Insert([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	entries := tr.IterAll()
	if len(entries) != len(keys) {
		t.Fatalf("IterAll returned %d entries, want %d", len(entries), len(keys))
	}
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			t.Fatalf("IterAll not strictly ascending at %d: %q >= %q", i, entries[i-1].Key, entries[i].Key)
		}
	}

	want := append([]string(nil), keys...)
	sort.Strings(want)
	for i, e := range entries {
		if string(e.Key) != want[i] {
			t.Fatalf("entry %d key = %q, want %q", i, e.Key, want[i])
		}
		if string(e.Value) != want[i] {
			t.Fatalf("entry %d value = %q, want %q", i, e.Value, want[i])
		}
	}
}

func TestTrie_GetReturnsCopy(t *testing.T) {
	tr := New()
	if err := tr.Insert([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, _, _ := tr.Get([]byte("k"))
	v[0] = 'X'
	v2, _, _ := tr.Get([]byte("k"))
	if string(v2) != "v" {
		t.Fatalf("mutating a Get result corrupted trie state: %q", v2)
	}
}

// TestTrie_ConcurrentReadersWriter exercises the concurrency contract of
// §4.1/§5: one writer mutating while many readers traverse must never
// crash or observe a half-built node.
func TestTrie_ConcurrentReadersWriter(t *testing.T) {
	tr := New()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			k := []byte{byte(i % 256), byte(i / 256)}
			if _, _, err := tr.Put(k, []byte{byte(i)}); err != nil {
				if _, ok := err.(*kverrors.CasFailedError); !ok {
					t.Errorf("Put: unexpected error %v", err)
				}
			}
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				k := []byte{byte(i % 256), byte(i / 256)}
				if _, _, err := tr.Get(k); err != nil {
					t.Errorf("Get: unexpected error %v", err)
				}
			}
		}()
	}

	wg.Wait()
}
