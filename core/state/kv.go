package state

import (
	"sort"

	"poolvault/storage"
)

// KVStore abstracts the raw byte-level store the manager operates on. The
// vault's transaction bracket supplies an Overlay here so that every ledger
// mutation inside the bracket can be committed or discarded as one unit.
type KVStore interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key []byte, value []byte) error
}

// DatabaseKV adapts a storage.Database to the KVStore interface.
type DatabaseKV struct {
	db storage.Database
}

// NewDatabaseKV wraps the given database.
func NewDatabaseKV(db storage.Database) *DatabaseKV {
	return &DatabaseKV{db: db}
}

func (d *DatabaseKV) Get(key []byte) ([]byte, bool, error) {
	value, err := d.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (d *DatabaseKV) Put(key []byte, value []byte) error {
	return d.db.Put(key, value)
}

// Overlay buffers writes on top of a base store. Reads consult the buffer
// first and fall through to the base. Nothing reaches the base until Commit;
// dropping the overlay discards every buffered write.
type Overlay struct {
	base   KVStore
	writes map[string][]byte
}

// NewOverlay creates an empty overlay over base.
func NewOverlay(base KVStore) *Overlay {
	return &Overlay{base: base, writes: make(map[string][]byte)}
}

func (o *Overlay) Get(key []byte) ([]byte, bool, error) {
	if value, ok := o.writes[string(key)]; ok {
		return value, true, nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// Len reports the number of buffered writes.
func (o *Overlay) Len() int { return len(o.writes) }

// Commit flushes the buffered writes to the base store in sorted key order so
// repeated runs touch the backend deterministically.
func (o *Overlay) Commit() error {
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := o.base.Put([]byte(k), o.writes[k]); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	return nil
}
