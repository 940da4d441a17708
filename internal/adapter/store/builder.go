package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.etcd.io/bbolt"
	"ranker/internal/adapter/memstore"
	"ranker/internal/domain"
	"ranker/internal/port"
)

// bbolt splits pages at this fill ratio; keys are always inserted in order.
const sequentialFillPercent = 0.9

var errBuilderClosed = errors.New("builder session is closed")

// BuilderOptions configures a builder session.
type BuilderOptions struct {
	// LockTimeout is how long to wait for the writer lock before failing
	// with ErrWriterLocked.
	LockTimeout time.Duration
	// KeepSnapshots is how many committed generations survive a commit.
	KeepSnapshots int
	Logger        *slog.Logger
}

// Builder is a single-writer session over an index directory. It stages
// documents in memory and publishes them as a new snapshot generation on
// Commit. A Builder is not safe for concurrent use.
type Builder struct {
	dir       string
	mode      domain.BuildMode
	tokenizer port.Tokenizer
	opts      BuilderOptions
	log       *slog.Logger

	lock       *writerLock
	base       *Snapshot
	staged     *memstore.MemoryIndex
	docs       []domain.DocumentInfo
	nextID     uint32
	generation uint64
	closed     bool
}

var _ port.IndexWriter = (*Builder)(nil)

// OpenBuilder takes the writer lock on dir and prepares a session. APPEND
// on a directory without a committed index starts from an empty index.
func OpenBuilder(dir string, mode domain.BuildMode, tokenizer port.Tokenizer, opts BuilderOptions) (*Builder, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	lock, err := acquireWriterLock(dir, mode, opts.LockTimeout)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		dir:       dir,
		mode:      mode,
		tokenizer: tokenizer,
		opts:      opts,
		log:       log,
		lock:      lock,
		staged:    memstore.NewMemoryIndex(),
	}
	if err := b.prepare(); err != nil {
		lock.release()
		return nil, err
	}
	return b, nil
}

func (b *Builder) prepare() error {
	stale, err := cleanupStaging(b.dir)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		b.log.Warn("removed staging files from an interrupted build", "count", len(stale))
	}

	gens, err := listGenerations(b.dir)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(gens) > 0 {
		b.generation = gens[len(gens)-1]
	}

	if b.mode != domain.ModeAppend {
		return nil
	}
	base, err := OpenSnapshot(b.dir, SnapshotOptions{})
	if errors.Is(err, domain.ErrIndexNotFound) {
		b.log.Info("no committed index, append starts empty", "dir", b.dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open index for append: %w", err)
	}
	b.base = base
	b.nextID = base.TotalDocuments()
	b.generation = max(b.generation, base.Generation())
	return nil
}

// AddDocument tokenizes every field of doc into the staging dictionary and
// returns the assigned docId.
func (b *Builder) AddDocument(doc domain.Document) (uint32, error) {
	if b.closed {
		return 0, errBuilderClosed
	}
	id := b.nextID

	fields := make([]string, 0, len(doc.Fields))
	for f := range doc.Fields {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	for _, field := range fields {
		b.staged.AddField(field)
		for tok := range b.tokenizer.Tokenize(doc.Fields[field]) {
			b.staged.Insert(field, tok.Term, id, tok.Position)
		}
	}

	path := doc.Path
	if path == "" {
		path = doc.Fields[domain.FieldPath]
	}
	b.docs = append(b.docs, domain.DocumentInfo{Path: path, Name: filepath.Base(path)})
	b.staged.MarkDocument()
	b.nextID++
	return id, nil
}

// Staged reports how many documents this session has added.
func (b *Builder) Staged() int {
	return b.staged.DocumentCount()
}

// Commit writes a new snapshot generation, verifies it and swaps CURRENT
// to it. On failure CURRENT still names the previous generation. The
// session is closed afterwards either way.
func (b *Builder) Commit(ctx context.Context) (domain.IndexStats, error) {
	if b.closed {
		return domain.IndexStats{}, errBuilderClosed
	}
	defer b.close()

	gen := b.generation + 1
	name := snapshotName(gen)
	final := filepath.Join(b.dir, name)
	tmp := final + stagingSuffix

	stats := domain.IndexStats{
		TotalDocuments: b.nextID,
		Fields:         b.fields(),
		Generation:     gen,
		SchemaVersion:  CurrentSchemaVersion,
		CreatedAt:      time.Now().UTC(),
	}

	if err := b.writeSnapshot(ctx, tmp, stats); err != nil {
		os.Remove(tmp)
		return domain.IndexStats{}, err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return domain.IndexStats{}, fmt.Errorf("failed to publish snapshot: %w", err)
	}
	if err := syncDir(b.dir); err != nil {
		return domain.IndexStats{}, err
	}

	snap, err := openSnapshotFile(final, SnapshotOptions{})
	if err == nil {
		err = snap.Verify(ctx)
		snap.Close()
	}
	if err != nil {
		os.Remove(final)
		return domain.IndexStats{}, fmt.Errorf("new snapshot failed verification: %w", err)
	}

	if err := writeCurrent(b.dir, name); err != nil {
		os.Remove(final)
		return domain.IndexStats{}, err
	}

	removed, err := pruneSnapshots(b.dir, b.opts.KeepSnapshots, gen)
	if err != nil {
		b.log.Warn("failed to prune old snapshots", "error", err)
	} else if len(removed) > 0 {
		b.log.Debug("pruned old snapshots", "generations", removed)
	}

	b.log.Info("committed snapshot",
		"generation", gen,
		"mode", b.mode.String(),
		"documents", stats.TotalDocuments,
		"added", len(b.docs),
	)
	return stats, nil
}

// Abort discards the session without touching the committed index.
func (b *Builder) Abort() error {
	if b.closed {
		return nil
	}
	return b.close()
}

func (b *Builder) close() error {
	b.closed = true
	b.staged.Reset()
	var errs []error
	if b.base != nil {
		errs = append(errs, b.base.Close())
		b.base = nil
	}
	errs = append(errs, b.lock.release())
	return errors.Join(errs...)
}

func (b *Builder) fields() []string {
	fields := b.staged.Fields()
	if b.base != nil {
		for _, f := range b.base.Stats().Fields {
			if !slices.Contains(fields, f) {
				fields = append(fields, f)
			}
		}
	}
	slices.Sort(fields)
	return fields
}

func (b *Builder) writeSnapshot(ctx context.Context, path string, stats domain.IndexStats) error {
	out, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	err = out.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketDocs, bucketFields} {
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return b.writeDocuments(tx.Bucket(bucketDocs))
	})
	if err != nil {
		out.Close()
		return err
	}

	for _, field := range stats.Fields {
		if err := cancelled(ctx); err != nil {
			out.Close()
			return err
		}
		err := out.Update(func(tx *bbolt.Tx) error {
			fb, err := tx.Bucket(bucketFields).CreateBucket([]byte(field))
			if err != nil {
				return fmt.Errorf("failed to create dictionary %s: %w", field, err)
			}
			fb.FillPercent = sequentialFillPercent
			return b.mergeField(ctx, field, fb)
		})
		if err != nil {
			out.Close()
			return err
		}
	}

	err = out.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyStats, data)
	})
	if err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (b *Builder) writeDocuments(docs *bbolt.Bucket) error {
	docs.FillPercent = sequentialFillPercent
	if b.base != nil {
		err := b.base.db.View(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
				return docs.Put(bytes.Clone(k), bytes.Clone(v))
			})
		})
		if err != nil {
			return fmt.Errorf("failed to copy documents: %w", err)
		}
	}

	first := b.nextID - uint32(len(b.docs))
	for i, info := range b.docs {
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := docs.Put(docKey(first+uint32(i)), data); err != nil {
			return err
		}
	}
	return nil
}

// mergeField merge-joins the base dictionary of field, already sorted by
// bbolt, with the sorted staged terms. Base-only entries are copied without
// decoding; shared terms get the staged postings appended.
func (b *Builder) mergeField(ctx context.Context, field string, out *bbolt.Bucket) error {
	staged := b.staged.Terms(field)

	put := func(term string, list domain.PostingsList) error {
		return out.Put([]byte(term), encodePostings(list))
	}

	if b.base == nil {
		for i, term := range staged {
			if i%scanCheckEvery == 0 {
				if err := cancelled(ctx); err != nil {
					return err
				}
			}
			entry, _ := b.staged.Entry(field, term)
			if err := put(term, entry.Postings); err != nil {
				return err
			}
		}
		return nil
	}

	return b.base.db.View(func(tx *bbolt.Tx) error {
		var c *bbolt.Cursor
		var k, v []byte
		if bb := fieldBucket(tx, field); bb != nil {
			c = bb.Cursor()
			k, v = c.First()
		}

		i, n := 0, 0
		for k != nil || i < len(staged) {
			if n%scanCheckEvery == 0 {
				if err := cancelled(ctx); err != nil {
					return err
				}
			}
			n++

			switch {
			case i >= len(staged) || (k != nil && string(k) < staged[i]):
				if err := out.Put(bytes.Clone(k), bytes.Clone(v)); err != nil {
					return err
				}
				k, v = c.Next()
			case k == nil || staged[i] < string(k):
				entry, _ := b.staged.Entry(field, staged[i])
				if err := put(staged[i], entry.Postings); err != nil {
					return err
				}
				i++
			default:
				existing, err := decodePostings(v)
				if err != nil {
					return fmt.Errorf("field %s term %q: %w", field, k, err)
				}
				entry, _ := b.staged.Entry(field, staged[i])
				if err := put(staged[i], mergePostings(existing, entry.Postings)); err != nil {
					return err
				}
				i++
				k, v = c.Next()
			}
		}
		return nil
	})
}
