package store

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var routesBucket = []byte("Routes")

// Bolt keeps the mapping in a bbolt bucket, one key per endpoint with the
// port stored as a decimal string.
type Bolt struct {
	mutex sync.Mutex
	path  string
	db    *bbolt.DB
}

// OpenBolt opens (creating if needed) the database at path. A file that is
// not a valid bbolt database is reported as ErrCorrupt. A database that is
// locked by another process or not accessible does not fail here: Load
// reports ErrUnreadable and Save retries the open.
func OpenBolt(path string) (*Bolt, error) {
	b := &Bolt{path: path}

	if err := b.open(); err != nil && !errors.Is(err, ErrUnreadable) {
		return nil, err
	}

	return b, nil
}

// open must be called with the mutex held or before b is shared.
func (b *Bolt) open() error {
	if b.db != nil {
		return nil
	}

	db, err := bbolt.Open(b.path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) || errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s: %v", ErrUnreadable, b.path, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, b.path, err)
	}

	b.db = db
	return nil
}

func (b *Bolt) Load() (map[string]int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.open(); err != nil {
		return nil, err
	}

	routes := map[string]int{}

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(routesBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			port, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("%w: endpoint %q has port %q", ErrCorrupt, k, v)
			}
			routes[string(k)] = port
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return routes, nil
}

// Save replaces the bucket contents inside one transaction.
func (b *Bolt) Save(routes map[string]int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.open(); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(routesBucket) != nil {
			if err := tx.DeleteBucket(routesBucket); err != nil {
				return err
			}
		}

		bucket, err := tx.CreateBucket(routesBucket)
		if err != nil {
			return err
		}

		for endpoint, port := range routes {
			if err := bucket.Put([]byte(endpoint), []byte(strconv.Itoa(port))); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
