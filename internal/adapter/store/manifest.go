package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"ranker/internal/domain"
)

const (
	// CurrentFileName names the committed snapshot of an index directory.
	CurrentFileName = "CURRENT"
	lockFileName    = "LOCK"
	stagingSuffix   = ".tmp"
	snapshotPattern = "index-%06d.db"
)

func snapshotName(generation uint64) string {
	return fmt.Sprintf(snapshotPattern, generation)
}

func parseSnapshotName(name string) (uint64, bool) {
	digits, ok := strings.CutPrefix(name, "index-")
	if !ok {
		return 0, false
	}
	if digits, ok = strings.CutSuffix(digits, ".db"); !ok {
		return 0, false
	}
	gen, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, snapshotName(gen) == name
}

// readCurrent returns the snapshot file name and generation that CURRENT
// points at.
func readCurrent(dir string) (string, uint64, error) {
	data, err := os.ReadFile(filepath.Join(dir, CurrentFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, dir)
		}
		return "", 0, fmt.Errorf("read %s: %w", CurrentFileName, err)
	}
	name := strings.TrimSpace(string(data))
	gen, ok := parseSnapshotName(name)
	if !ok {
		return "", 0, domain.Corruptf("%s names unknown snapshot %q", CurrentFileName, name)
	}
	return name, gen, nil
}

// writeCurrent swaps CURRENT to name with a write-then-rename.
func writeCurrent(dir, name string) error {
	tmp := filepath.Join(dir, CurrentFileName+stagingSuffix)
	if err := writeFileSync(tmp, []byte(name+"\n")); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(dir, CurrentFileName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swap %s: %w", CurrentFileName, err)
	}
	return syncDir(dir)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some filesystems refuse to fsync a directory; the rename is still durable enough there.
	_ = d.Sync()
	return nil
}

// cleanupStaging removes files left behind by an interrupted session.
func cleanupStaging(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+stagingSuffix))
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale %s: %w", filepath.Base(m), err)
		}
	}
	return matches, nil
}

// listGenerations returns the generations of committed snapshot files,
// oldest first.
func listGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var gens []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if gen, ok := parseSnapshotName(e.Name()); ok {
			gens = append(gens, gen)
		}
	}
	slices.Sort(gens)
	return gens, nil
}

// pruneSnapshots deletes all but the newest keep generations. The current
// generation is never removed.
func pruneSnapshots(dir string, keep int, current uint64) ([]uint64, error) {
	if keep < 1 {
		keep = 1
	}
	gens, err := listGenerations(dir)
	if err != nil {
		return nil, err
	}
	if len(gens) <= keep {
		return nil, nil
	}
	var removed []uint64
	for _, gen := range gens[:len(gens)-keep] {
		if gen == current {
			continue
		}
		if err := os.Remove(filepath.Join(dir, snapshotName(gen))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed = append(removed, gen)
	}
	return removed, nil
}
