package kv

import (
	"path/filepath"
	"testing"
	"time"

	"go.etcd.io/bbolt"
)

type sample struct {
	Name  string
	Value int64
}

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := bbolt.Open(filepath.Join(dir, "test.db"), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bbolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertGetRemove(t *testing.T) {
	db := openTestDB(t)
	bk, err := Open[sample](db, "samples", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key := []byte("k1")
	if prior, err := bk.Insert(key, &sample{Name: "a", Value: 1}); err != nil || prior != nil {
		t.Fatalf("Insert first: prior=%v err=%v", prior, err)
	}

	prior, err := bk.Insert(key, &sample{Name: "a", Value: 2})
	if err != nil {
		t.Fatalf("Insert second: %v", err)
	}
	if prior == nil || prior.Value != 1 {
		t.Fatalf("expected prior value 1, got %+v", prior)
	}

	got, err := bk.Get(key)
	if err != nil || got == nil || got.Value != 2 {
		t.Fatalf("Get: %+v, err=%v", got, err)
	}

	removed, err := bk.Remove(key)
	if err != nil || removed == nil || removed.Value != 2 {
		t.Fatalf("Remove: %+v, err=%v", removed, err)
	}

	if ok, _ := bk.Contains(key); ok {
		t.Fatalf("expected key absent after remove")
	}
}

func TestRemoveOfUndecodableValueReturnsNilNotError(t *testing.T) {
	db := openTestDB(t)
	bk, err := Open[sample](db, "samples", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key := []byte("corrupt")
	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte("samples")).Put(key, []byte("not msgpack"))
	})
	if err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	prior, err := bk.Remove(key)
	if err != nil {
		t.Fatalf("Remove of undecodable value must not error: %v", err)
	}
	if prior != nil {
		t.Fatalf("expected nil prior value for undecodable entry, got %+v", prior)
	}
}

type countingHook struct {
	inserts int
	removes int
	batches int
}

func (h *countingHook) OnInsert(bucket string, key []byte, value *sample)     { h.inserts++ }
func (h *countingHook) OnRemove(bucket string, key []byte)                    { h.removes++ }
func (h *countingHook) OnApplyBatch(bucket string, entries []BatchEntry[sample]) { h.batches++ }

func TestHookFiresAfterCommit(t *testing.T) {
	db := openTestDB(t)
	hook := &countingHook{}
	bk, err := Open[sample](db, "samples", hook)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := bk.Insert([]byte("a"), &sample{Name: "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := bk.Remove([]byte("a")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := bk.ApplyBatch([]BatchEntry[sample]{{Key: []byte("b"), Value: &sample{Name: "b"}}}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	if hook.inserts != 1 || hook.removes != 1 || hook.batches != 1 {
		t.Fatalf("unexpected hook counts: %+v", hook)
	}
}

func TestRangeIteratesAscendingWithinBounds(t *testing.T) {
	db := openTestDB(t)
	bk, err := Open[sample](db, "samples", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, k := range []string{"a", "b", "c", "d"} {
		if _, err := bk.Insert([]byte(k), &sample{Name: k}); err != nil {
			t.Fatalf("Insert %s: %v", k, err)
		}
	}

	var got []string
	err = bk.Range([]byte("b"), []byte("d"), func(key []byte, value *sample) bool {
		got = append(got, string(key))
		return true
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected range result: %v", got)
	}
}
