// Package kv provides a typed, ordered, embedded key-value proxy over
// go.etcd.io/bbolt, one bucket per logical index. It mirrors the sled-tree
// proxy pattern: every mutation can notify a hook after the underlying
// transaction commits, and a value that fails to decode is treated as if
// no prior value existed rather than as an error, so a schema migration
// never turns a write into a crash.
package kv

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/0xtitan6/cryptoconnect/internal/errs"
)

// Hook observes committed mutations to a Bucket[T]. Implementations must not
// call back into the Bucket that invoked them — hooks run after commit, but
// re-entrant calls would otherwise nest a new transaction inside the
// caller's still-unwound stack frame.
type Hook[T any] interface {
	OnInsert(bucket string, key []byte, value *T)
	OnRemove(bucket string, key []byte)
	OnApplyBatch(bucket string, entries []BatchEntry[T])
}

// BatchEntry is one operation in an ApplyBatch call: a Value of nil means
// remove, non-nil means insert/overwrite.
type BatchEntry[T any] struct {
	Key   []byte
	Value *T
}

// Bucket is a typed view over one bbolt bucket.
type Bucket[T any] struct {
	db   *bbolt.DB
	name []byte
	hook Hook[T]
}

// Open returns a typed Bucket backed by db, creating the underlying bbolt
// bucket if it does not yet exist. hook may be nil.
func Open[T any](db *bbolt.DB, name string, hook Hook[T]) (*Bucket[T], error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, errs.Storage("kv.Open", err, "create bucket %q", name)
	}
	return &Bucket[T]{db: db, name: []byte(name), hook: hook}, nil
}

func decode[T any](raw []byte) (*T, bool) {
	var v T
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func encode[T any](v *T) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Get fetches the value stored at key, or (nil, nil) if absent.
func (b *Bucket[T]) Get(key []byte) (*T, error) {
	var out *T
	err := b.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.name)
		raw := bk.Get(key)
		if raw == nil {
			return nil
		}
		v, ok := decode[T](raw)
		if !ok {
			return nil
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, errs.Storage("kv.Get", err, "bucket %s", b.name)
	}
	return out, nil
}

// Contains reports whether key is present.
func (b *Bucket[T]) Contains(key []byte) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(b.name).Get(key) != nil
		return nil
	})
	if err != nil {
		return false, errs.Storage("kv.Contains", err, "bucket %s", b.name)
	}
	return found, nil
}

// Insert stores value at key and returns the prior value, if any. A prior
// value that fails to decode is reported as absent (nil, not an error).
func (b *Bucket[T]) Insert(key []byte, value *T) (*T, error) {
	raw, err := encode(value)
	if err != nil {
		return nil, errs.Storage("kv.Insert", err, "encode value for key %x", key)
	}

	var prior *T
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.name)
		if old := bk.Get(key); old != nil {
			if v, ok := decode[T](old); ok {
				prior = v
			}
		}
		return bk.Put(key, raw)
	})
	if err != nil {
		return nil, errs.Storage("kv.Insert", err, "put key %x", key)
	}

	if b.hook != nil {
		b.hook.OnInsert(string(b.name), key, value)
	}
	return prior, nil
}

// Remove deletes key and returns the value that was stored there, if any.
// A value that fails to decode is reported as absent (nil, not an error).
func (b *Bucket[T]) Remove(key []byte) (*T, error) {
	var prior *T
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.name)
		if old := bk.Get(key); old != nil {
			if v, ok := decode[T](old); ok {
				prior = v
			}
		}
		return bk.Delete(key)
	})
	if err != nil {
		return nil, errs.Storage("kv.Remove", err, "delete key %x", key)
	}

	if b.hook != nil {
		b.hook.OnRemove(string(b.name), key)
	}
	return prior, nil
}

// ApplyBatch commits every entry in a single transaction, then invokes the
// hook once with the whole batch.
func (b *Bucket[T]) ApplyBatch(entries []BatchEntry[T]) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(b.name)
		for _, e := range entries {
			if e.Value == nil {
				if err := bk.Delete(e.Key); err != nil {
					return err
				}
				continue
			}
			raw, err := encode(e.Value)
			if err != nil {
				return err
			}
			if err := bk.Put(e.Key, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Storage("kv.ApplyBatch", err, "bucket %s", b.name)
	}

	if b.hook != nil {
		b.hook.OnApplyBatch(string(b.name), entries)
	}
	return nil
}

// Iter calls fn for every key/value pair in ascending key order, stopping
// early if fn returns false. Decode failures are skipped silently.
func (b *Bucket[T]) Iter(fn func(key []byte, value *T) bool) error {
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(b.name).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			val, ok := decode[T](v)
			if !ok {
				continue
			}
			if !fn(k, val) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return errs.Storage("kv.Iter", err, "bucket %s", b.name)
	}
	return nil
}

// Range calls fn for every key in [start, end) in ascending order.
func (b *Bucket[T]) Range(start, end []byte, fn func(key []byte, value *T) bool) error {
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(b.name).Cursor()
		for k, v := c.Seek(start); k != nil && (end == nil || bytes.Compare(k, end) < 0); k, v = c.Next() {
			val, ok := decode[T](v)
			if !ok {
				continue
			}
			if !fn(k, val) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return errs.Storage("kv.Range", err, "bucket %s", b.name)
	}
	return nil
}
