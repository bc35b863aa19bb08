// Package db wires the B-tree engine onto a file-backed Memory, exposing a
// thin string-keyed key/value store on top of it.
package db

import (
	"github.com/sirgallo/logger"

	"github.com/kvstore/btreemap/pkg/btree"
	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/storable"
)

var dbLog = logger.NewCustomLog("db.DB")

// DB is a durable string-keyed, string-valued map backed by a single file.
type DB struct {
	mem memory.Memory
	m   *btree.Map[string, string]
}

// Config controls the key/value size bounds of a newly opened DB.
type Config struct {
	MaxKeySize   uint32
	MaxValueSize uint32
}

// DefaultConfig returns generous bounds suitable for small-to-medium
// string keys and values.
func DefaultConfig() Config {
	return Config{MaxKeySize: 256, MaxValueSize: 4096}
}

// NewDB opens (or creates) the database file at path and loads or
// initializes its B-tree map.
func NewDB(path string, cfg Config) (*DB, error) {
	mem, err := memory.NewFileMemory(path)
	if err != nil {
		dbLog.Error("failed to open file memory at ", path, ": ", err)
		return nil, err
	}

	keyCodec := storable.StringCodec(cfg.MaxKeySize)
	valCodec := storable.StringCodec(cfg.MaxValueSize)
	m := btree.Init(mem, keyCodec, valCodec)

	dbLog.Info("opened db at ", path, " with ", m.Len(), " entries")
	return &DB{mem: mem, m: m}, nil
}

// Put inserts or overwrites key with value.
func (d *DB) Put(key string, value string) {
	d.m.Insert(key, value)
}

// Get returns the value for key, if present.
func (d *DB) Get(key string) (string, bool) {
	return d.m.Get(key)
}

// Delete removes key, returning its value if it was present.
func (d *DB) Delete(key string) (string, bool) {
	return d.m.Remove(key)
}

// Traverse calls fn for every entry in ascending key order.
func (d *DB) Traverse(fn func(key, value string)) {
	it := d.m.Iter()
	for {
		k, v, ok := it.Next()
		if !ok {
			return
		}
		fn(k, v)
	}
}

// Len returns the number of entries currently stored.
func (d *DB) Len() uint64 { return d.m.Len() }

// Close releases the underlying file handle.
func (d *DB) Close() error {
	if fm, ok := d.mem.(*memory.FileMemory); ok {
		return fm.Close()
	}
	return nil
}
