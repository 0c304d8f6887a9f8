package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
)

// JSONFile stores subscribers as a single JSON object keyed by subscriber id:
//
//	{"<id>": {"enabled": true, "notifications": true}, ...}
type JSONFile struct {
	Path string
}

// Load reads and parses the settings file. A missing file yields an error
// matching os.ErrNotExist.
func (f *JSONFile) Load() (map[string]Settings, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	subs := make(map[string]Settings)
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	return subs, nil
}

// Save writes the mapping to a temporary file in the same directory and
// renames it over the settings file.
func (f *JSONFile) Save(subs map[string]Settings) error {
	data, err := json.Marshal(subs)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, f.Path)
}

var subscribersBucket = []byte("subscribers")

// BoltFile stores subscribers in a bolt database with a single bucket,
// one key per subscriber id and the JSON encoded settings as value.
type BoltFile struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bolt database at path
func OpenBolt(path string) (*BoltFile, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("could not open bolt database %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(subscribersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ensure bucket exists: %w", err)
	}
	return &BoltFile{db: db}, nil
}

// Close releases the database file lock
func (b *BoltFile) Close() error {
	return b.db.Close()
}

// Load reads every subscriber from the bucket
func (b *BoltFile) Load() (map[string]Settings, error) {
	subs := make(map[string]Settings)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(subscribersBucket).ForEach(func(k, v []byte) error {
			var st Settings
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("subscriber %q: %w", k, err)
			}
			subs[string(k)] = st
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// Save replaces the bucket contents with subs in one transaction
func (b *BoltFile) Save(subs map[string]Settings) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(subscribersBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket(subscribersBucket)
		if err != nil {
			return err
		}
		for id, st := range subs {
			v, err := json.Marshal(st)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(id), v); err != nil {
				return err
			}
		}
		return nil
	})
}
