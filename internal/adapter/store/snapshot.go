package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"ranker/internal/adapter/cache"
	"ranker/internal/domain"
	"ranker/internal/port"
)

var (
	bucketMeta   = []byte("meta")
	bucketDocs   = []byte("docs")
	bucketFields = []byte("fields")
	keyStats     = []byte("stats")
)

// SnapshotOptions configures how a committed snapshot is opened.
type SnapshotOptions struct {
	// CacheSize bounds the decoded postings cache; 0 disables it.
	CacheSize int
	// Verify runs the full invariant check before the snapshot is served.
	Verify bool
}

// Snapshot is a read-only view of one committed index generation. It is
// safe for concurrent use by any number of searches.
type Snapshot struct {
	db       *bbolt.DB
	path     string
	stats    domain.IndexStats
	lexicons map[string]*lexicon
	cache    *cache.PostingsCache
}

var _ port.IndexReader = (*Snapshot)(nil)

// OpenSnapshot opens the generation CURRENT points at. Commits made after
// this call are not visible through the returned snapshot.
func OpenSnapshot(dir string, opts SnapshotOptions) (*Snapshot, error) {
	name, _, err := readCurrent(dir)
	if err != nil {
		return nil, err
	}
	return openSnapshotFile(filepath.Join(dir, name), opts)
}

func openSnapshotFile(path string, opts SnapshotOptions) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.Corruptf("snapshot %s is missing", filepath.Base(path))
		}
		return nil, err
	}

	db, err := bbolt.Open(path, 0444, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrInvalid) || errors.Is(err, bbolt.ErrChecksum) || errors.Is(err, bbolt.ErrVersionMismatch) {
			return nil, domain.Corruptf("snapshot %s: %v", filepath.Base(path), err)
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	s := &Snapshot{
		db:    db,
		path:  path,
		cache: cache.NewPostingsCache(opts.CacheSize),
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	if opts.Verify {
		if err := s.Verify(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// load performs the structural checks done on every open.
func (s *Snapshot) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return domain.Corruptf("snapshot has no meta bucket")
		}
		data := meta.Get(keyStats)
		if data == nil {
			return domain.Corruptf("snapshot has no stats")
		}
		if err := json.Unmarshal(data, &s.stats); err != nil {
			return domain.Corruptf("decode stats: %v", err)
		}
		if err := CheckSchema(s.stats).Err(); err != nil {
			return err
		}

		docs := tx.Bucket(bucketDocs)
		if docs == nil {
			return domain.Corruptf("snapshot has no document store")
		}
		if n := docs.Stats().KeyN; n != int(s.stats.TotalDocuments) {
			return domain.Corruptf("document store holds %d documents, stats say %d", n, s.stats.TotalDocuments)
		}

		root := tx.Bucket(bucketFields)
		if root == nil {
			return domain.Corruptf("snapshot has no term dictionaries")
		}
		s.lexicons = make(map[string]*lexicon, len(s.stats.Fields))
		for _, field := range s.stats.Fields {
			if root.Bucket([]byte(field)) == nil {
				return domain.Corruptf("dictionary for field %s is missing", field)
			}
			s.lexicons[field] = &lexicon{}
		}
		return nil
	})
}

func fieldBucket(tx *bbolt.Tx, field string) *bbolt.Bucket {
	root := tx.Bucket(bucketFields)
	if root == nil || field == "" {
		return nil
	}
	return root.Bucket([]byte(field))
}

func (s *Snapshot) Stats() domain.IndexStats {
	stats := s.stats
	stats.Fields = append([]string(nil), s.stats.Fields...)
	return stats
}

func (s *Snapshot) TotalDocuments() uint32 {
	return s.stats.TotalDocuments
}

func (s *Snapshot) Generation() uint64 {
	return s.stats.Generation
}

func (s *Snapshot) Path() string {
	return s.path
}

// CacheStats reports postings cache hits and misses.
func (s *Snapshot) CacheStats() (hits, misses uint64) {
	return s.cache.Stats()
}

func (s *Snapshot) Postings(field, term string) (domain.PostingsList, error) {
	if term == "" {
		return nil, nil
	}
	if list, ok := s.cache.Get(field, term); ok {
		return list, nil
	}

	var list domain.PostingsList
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := fieldBucket(tx, field)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(term))
		if v == nil {
			return nil
		}
		var err error
		list, err = decodePostings(v)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postings %s:%s: %w", field, term, err)
	}
	s.cache.Put(field, term, list)
	return list, nil
}

func (s *Snapshot) DocumentFrequency(field, term string) (int, error) {
	if term == "" {
		return 0, nil
	}
	if list, ok := s.cache.Get(field, term); ok {
		return len(list), nil
	}

	var df int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := fieldBucket(tx, field)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(term))
		if v == nil {
			return nil
		}
		var err error
		df, err = decodeDocumentFrequency(v)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("document frequency %s:%s: %w", field, term, err)
	}
	return df, nil
}

// Terms returns the sorted term list of field, loading it on first use.
func (s *Snapshot) Terms(field string) ([]string, error) {
	lex, ok := s.lexicons[field]
	if !ok {
		return nil, nil
	}
	return lex.load(func() ([]string, error) {
		var terms []string
		err := s.db.View(func(tx *bbolt.Tx) error {
			b := fieldBucket(tx, field)
			terms = make([]string, 0, b.Stats().KeyN)
			return b.ForEach(func(k, _ []byte) error {
				terms = append(terms, string(k))
				return nil
			})
		})
		if err != nil {
			return nil, fmt.Errorf("load lexicon %s: %w", field, err)
		}
		return terms, nil
	})
}

func (s *Snapshot) PrefixScan(ctx context.Context, field, pattern string) ([]string, error) {
	terms, err := s.Terms(field)
	if err != nil {
		return nil, err
	}
	return prefixScan(ctx, terms, pattern)
}

func (s *Snapshot) FuzzyScan(ctx context.Context, field, text string, maxEdits int) ([]port.TermMatch, error) {
	terms, err := s.Terms(field)
	if err != nil {
		return nil, err
	}
	return fuzzyScan(ctx, terms, text, maxEdits)
}

func (s *Snapshot) Document(id uint32) (domain.DocumentInfo, error) {
	var info domain.DocumentInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketDocs).Get(docKey(id))
		if v == nil {
			return domain.Corruptf("document %d is not stored", id)
		}
		if err := json.Unmarshal(v, &info); err != nil {
			return domain.Corruptf("decode document %d: %v", id, err)
		}
		return nil
	})
	return info, err
}

// ForEachTerm visits every dictionary entry of field in term order.
func (s *Snapshot) ForEachTerm(field string, fn func(domain.TermEntry) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := fieldBucket(tx, field)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			list, err := decodePostings(v)
			if err != nil {
				return fmt.Errorf("term %q: %w", k, err)
			}
			return fn(domain.TermEntry{Term: string(k), DocumentFrequency: len(list), Postings: list})
		})
	})
}

// Verify checks every dictionary and postings invariant of the snapshot:
// dense document ids, df equal to the postings count, strictly ascending
// docIds below totalDocuments and strictly increasing positions.
func (s *Snapshot) Verify(ctx context.Context) error {
	total := s.stats.TotalDocuments
	return s.db.View(func(tx *bbolt.Tx) error {
		var next uint32
		err := tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			id, err := decodeDocKey(k)
			if err != nil {
				return err
			}
			if id != next {
				return domain.Corruptf("document ids are not dense: found %d, want %d", id, next)
			}
			next++
			var info domain.DocumentInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return domain.Corruptf("decode document %d: %v", id, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if next != total {
			return domain.Corruptf("document store holds %d documents, stats say %d", next, total)
		}

		for _, field := range s.stats.Fields {
			b := fieldBucket(tx, field)
			if b == nil {
				return domain.Corruptf("dictionary for field %s is missing", field)
			}
			c := b.Cursor()
			i := 0
			for k, v := c.First(); k != nil; k, v = c.Next() {
				if i%scanCheckEvery == 0 {
					if err := cancelled(ctx); err != nil {
						return err
					}
				}
				i++
				if v == nil {
					return domain.Corruptf("field %s: nested bucket %q in dictionary", field, k)
				}
				list, err := decodePostings(v)
				if err != nil {
					return fmt.Errorf("field %s term %q: %w", field, k, err)
				}
				if len(list) == 0 {
					return domain.Corruptf("field %s term %q has no postings", field, k)
				}
				if last := list[len(list)-1].DocID; last >= total {
					return domain.Corruptf("field %s term %q references document %d of %d", field, k, last, total)
				}
			}
		}
		return nil
	})
}

func (s *Snapshot) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
