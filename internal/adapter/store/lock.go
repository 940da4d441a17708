package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"ranker/internal/domain"
)

const defaultLockTimeout = 200 * time.Millisecond

var (
	bucketLock = []byte("lock")
	keyOwner   = []byte("owner")
)

type lockOwner struct {
	PID     int       `json:"pid"`
	Mode    string    `json:"mode"`
	Started time.Time `json:"started"`
}

// writerLock holds the exclusive flock bbolt takes on the LOCK file for as
// long as the database stays open.
type writerLock struct {
	db *bbolt.DB
}

func acquireWriterLock(dir string, mode domain.BuildMode, timeout time.Duration) (*writerLock, error) {
	if timeout <= 0 {
		// bbolt waits forever on a zero timeout.
		timeout = defaultLockTimeout
	}
	db, err := bbolt.Open(filepath.Join(dir, lockFileName), 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", domain.ErrWriterLocked, dir)
		}
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketLock)
		if err != nil {
			return err
		}
		data, err := json.Marshal(lockOwner{PID: os.Getpid(), Mode: mode.String(), Started: time.Now()})
		if err != nil {
			return err
		}
		return b.Put(keyOwner, data)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record lock owner: %w", err)
	}
	return &writerLock{db: db}, nil
}

func (l *writerLock) release() error {
	if l == nil || l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}
