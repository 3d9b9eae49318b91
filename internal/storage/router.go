// Package storage places uploaded snapshots into category directories and
// keeps each category under its retention cap.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
)

// Category identifies one of the artifact directories.
type Category string

const (
	Pending    Category = "pending"
	Intruder   Category = "intruder"
	Authorized Category = "authorized"
)

// Categories lists every category in display order.
var Categories = []Category{Pending, Intruder, Authorized}

// ParseCategory maps an external category name to a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Pending, "no_detection", "images":
		return Pending, nil
	case Intruder, "intruders", "alerts":
		return Intruder, nil
	case Authorized:
		return Authorized, nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// Artifact describes a stored snapshot.
type Artifact struct {
	Filename string    `json:"filename"`
	Category Category  `json:"category"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modified_at"`
}

// Router owns physical placement of artifacts.
type Router struct {
	dirs     map[Category]string
	maxFiles int
	log      zerolog.Logger

	// retention runs per category are serialized so concurrent stores do not
	// race each other's deletions
	retentionMu map[Category]*sync.Mutex
	now         func() time.Time
}

// NewRouter creates a router over the given directories. Directories are
// created lazily on first write.
func NewRouter(pendingDir, intruderDir, authorizedDir string, maxFiles int, log zerolog.Logger) *Router {
	if maxFiles <= 0 {
		maxFiles = constants.DefaultMaxFilesPerCategory
	}
	r := &Router{
		dirs: map[Category]string{
			Pending:    pendingDir,
			Intruder:   intruderDir,
			Authorized: authorizedDir,
		},
		maxFiles:    maxFiles,
		log:         log.With().Str("component", "storage").Logger(),
		retentionMu: make(map[Category]*sync.Mutex, len(Categories)),
		now:         time.Now,
	}
	for _, c := range Categories {
		r.retentionMu[c] = &sync.Mutex{}
	}
	return r
}

// Dir returns the directory backing a category.
func (r *Router) Dir(cat Category) string {
	return r.dirs[cat]
}

// EnsureDirs creates all category directories.
func (r *Router) EnsureDirs() error {
	for _, c := range Categories {
		if err := os.MkdirAll(r.dirs[c], 0o755); err != nil {
			return fmt.Errorf("%w: create %s directory: %v", ErrStorage, c, err)
		}
	}
	return nil
}

// Store writes data as a new artifact in cat and returns its full path.
func (r *Router) Store(data []byte, originalName string, cat Category) (string, error) {
	dir, ok := r.dirs[cat]
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, cat)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if !AllowedExtension(originalName) {
		return "", fmt.Errorf("%w: file type not allowed: %q", ErrInvalidInput, filepath.Ext(originalName))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory: %v", ErrStorage, err)
	}

	dst := filepath.Join(dir, artifactName(originalName, r.now()))
	if err := writeAtomic(dir, dst, data); err != nil {
		return "", err
	}

	r.log.Debug().Str("path", dst).Int("bytes", len(data)).Msg("artifact stored")
	r.enforceRetention(cat)
	return dst, nil
}

func writeAtomic(dir, dst string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close: %v", ErrStorage, err)
	}
	if fi, err := os.Stat(tmpPath); err != nil || fi.Size() == 0 {
		cleanup()
		return fmt.Errorf("%w: written file is empty", ErrStorage)
	}
	if _, err := os.Lstat(dst); err == nil {
		cleanup()
		return fmt.Errorf("%w: destination exists: %s", ErrStorage, filepath.Base(dst))
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename: %v", ErrStorage, err)
	}
	return nil
}

// Relocate moves an artifact into cat and returns the new path. Moving a
// file into the category it already lives in returns the path unchanged.
func (r *Router) Relocate(path string, cat Category) (string, error) {
	dir, ok := r.dirs[cat]
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, cat)
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return "", fmt.Errorf("%w: stat: %v", ErrStorage, err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidInput, filepath.Base(path))
	}

	dst := filepath.Join(dir, filepath.Base(path))
	if sameFile(path, dst) {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create directory: %v", ErrStorage, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		return "", fmt.Errorf("%w: destination exists: %s", ErrStorage, filepath.Base(dst))
	}

	err = os.Rename(path, dst)
	if err == nil {
		r.log.Debug().Str("from", path).Str("to", dst).Msg("artifact relocated")
		return dst, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", fmt.Errorf("%w: rename: %v", ErrStorage, err)
	}

	if err := copyVerifyMove(path, dir, dst, fi.Size()); err != nil {
		return "", err
	}
	r.log.Debug().Str("from", path).Str("to", dst).Msg("artifact copied across filesystems")
	return dst, nil
}

// copyVerifyMove is the cross-device path: the source is deleted only after
// the copy is verified and renamed into place.
func copyVerifyMove(src, dir, dst string, size int64) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", ErrStorage, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, ".relocate-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	n, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return fmt.Errorf("%w: copy: %v", ErrStorage, err)
	}
	if n != size {
		cleanup()
		return fmt.Errorf("%w: copy size mismatch (%d != %d)", ErrStorage, n, size)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return fmt.Errorf("%w: rename copy: %v", ErrStorage, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("%w: remove source after copy: %v", ErrStorage, err)
	}
	return nil
}

func sameFile(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// Remove deletes the file at path. Returns true only if something was deleted.
func (r *Router) Remove(path string) bool {
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.log.Warn().Err(err).Str("path", path).Msg("failed to remove artifact")
		}
		return false
	}
	return true
}

// Resolve returns the full path of filename within cat. Names containing path
// separators or dot segments are rejected.
func (r *Router) Resolve(cat Category, filename string) (string, error) {
	dir, ok := r.dirs[cat]
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, cat)
	}
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: bad filename %q", ErrInvalidInput, filename)
	}
	return filepath.Join(dir, filename), nil
}

// List returns the artifacts of cat, newest first. A missing directory is an
// empty category.
func (r *Router) List(cat Category) ([]Artifact, error) {
	dir, ok := r.dirs[cat]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, cat)
	}
	arts, err := scan(dir, cat)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(arts, func(a, b Artifact) int { return -compareAge(a, b) })
	return arts, nil
}

// Count returns the number of artifacts in cat.
func (r *Router) Count(cat Category) (int, error) {
	arts, err := scan(r.dirs[cat], cat)
	if err != nil {
		return 0, err
	}
	return len(arts), nil
}

func scan(dir string, cat Category) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, cat, err)
	}

	arts := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") || !AllowedExtension(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Deleted between ReadDir and Info
			continue
		}
		arts = append(arts, Artifact{
			Filename: e.Name(),
			Category: cat,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return arts, nil
}

// compareAge orders oldest first by modification time, then by name.
func compareAge(a, b Artifact) int {
	if c := a.ModTime.Compare(b.ModTime); c != 0 {
		return c
	}
	return strings.Compare(a.Filename, b.Filename)
}

func (r *Router) enforceRetention(cat Category) {
	mu := r.retentionMu[cat]
	mu.Lock()
	defer mu.Unlock()

	arts, err := scan(r.dirs[cat], cat)
	if err != nil {
		r.log.Warn().Err(err).Str("category", string(cat)).Msg("retention scan failed")
		return
	}
	excess := len(arts) - r.maxFiles
	if excess <= 0 {
		return
	}

	slices.SortFunc(arts, compareAge)
	removed := 0
	for _, a := range arts[:excess] {
		if r.Remove(filepath.Join(r.dirs[cat], a.Filename)) {
			removed++
		}
	}
	r.log.Info().Str("category", string(cat)).Int("removed", removed).Msg("retention cleanup")
}
