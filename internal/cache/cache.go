// Package cache provides a persistent, BoltDB-backed cache of specs
// keyed by build id, shared across solver runs against the same
// repositories so a re-solve of an unchanged dependency graph never
// refetches a spec it has already read once.
package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"

	"github.com/strata-pm/strata"
)

var specsBucket = []byte("specs")

// Cache manages a BoltDB file holding cached package Specs. It is safe
// for concurrent use; BoltDB serializes writers internally and allows
// any number of concurrent readers.
type Cache struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the BoltDB cache file under dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cache: creating directory %s", dir)
	}
	path := filepath.Join(dir, "specs.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "cache: opening %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(specsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: creating specs bucket")
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying BoltDB file.
func (c *Cache) Close() error {
	return errors.Wrap(c.db.Close(), "cache: closing")
}

// buildKey derives a compact, sortable key from a BuildID: repository
// and name as literal path segments, the version's sort rank encoded
// with nuts.Key so builds of the same package cluster together in
// BoltDB's sorted b-tree layout, then the version string and the raw
// digest string.
func buildKey(id strata.BuildID, rank uint64) []byte {
	prefix := []byte(id.Repository + "\x00" + id.Name + "\x00")
	rk := make(nuts.Key, nuts.KeyLen(rank))
	rk.Put(rank)
	key := append(prefix, rk...)
	key = append(key, '\x00')
	key = append(key, []byte(id.Version.String())...)
	key = append(key, '\x00')
	key = append(key, []byte(id.Digest.String())...)
	return key
}

// Get returns the cached spec for id and rank (a caller-assigned total
// order over id.Version, typically a monotonic counter from the
// repository's version listing), if present.
func (c *Cache) Get(id strata.BuildID, rank uint64, decode func([]byte) (strata.Spec, error)) (strata.Spec, bool, error) {
	var spec strata.Spec
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(specsBucket)
		v := b.Get(buildKey(id, rank))
		if v == nil {
			return nil
		}
		s, err := decode(v)
		if err != nil {
			return err
		}
		spec, found = s, true
		return nil
	})
	return spec, found, err
}

// Put stores spec under id/rank, encoded by encode.
func (c *Cache) Put(id strata.BuildID, rank uint64, spec strata.Spec, encode func(strata.Spec) ([]byte, error)) error {
	data, err := encode(spec)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(specsBucket)
		return b.Put(buildKey(id, rank), data)
	})
}
