package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// fileWriter owns the current log file and performs rotation and
// retention. It is only ever touched while the Logger's flushMu is held,
// so it needs no locking of its own.
type fileWriter struct {
	path        string // the static, always-current path
	stem        string // base name without extension
	ext         string // extension including the dot, or ""
	dir         string
	maxSize     int64
	maxOldFiles int

	file *os.File
	size int64
}

func newFileWriter(path string, maxSize int64, maxOldFiles int) *fileWriter {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return &fileWriter{
		path:        path,
		stem:        stem,
		ext:         ext,
		dir:         dir,
		maxSize:     maxSize,
		maxOldFiles: maxOldFiles,
	}
}

// open creates the parent directory if needed and opens (or creates) the
// static log file for appending.
func (w *fileWriter) open() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("logging: cannot create log directory '%s': %w", w.dir, err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: cannot open log file '%s': %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("logging: cannot stat log file '%s': %w", w.path, err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// write appends data to the current file, then rotates if the size limit
// was exceeded. Rotation happens strictly after the write completes: no
// log line is ever split across two files.
func (w *fileWriter) write(data []byte) error {
	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	n, err := w.file.Write(data)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("logging: write to '%s' failed: %w", w.path, err)
	}
	if w.maxSize > 0 && w.size >= w.maxSize {
		return w.rotate()
	}
	return nil
}

// rotate closes the current file, renames it with a timestamp suffix,
// reopens a fresh static file, and enforces retention over the resulting
// rotation set. If an archive with the same timestamp already exists
// (two rotations within one second), a "_NNN" counter is appended to the
// timestamp so the earlier archive is not overwritten; the counter sorts
// after the bare timestamp, keeping lexicographic order temporal.
func (w *fileWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	stamp := time.Now().Format("20060102150405")
	archivePath := filepath.Join(w.dir, fmt.Sprintf("%s.%s%s", w.stem, stamp, w.ext))
	for i := 1; ; i++ {
		if _, err := os.Lstat(archivePath); err != nil {
			break
		}
		archivePath = filepath.Join(w.dir, fmt.Sprintf("%s.%s_%03d%s", w.stem, stamp, i, w.ext))
	}
	if err := os.Rename(w.path, archivePath); err != nil {
		return fmt.Errorf("logging: cannot rotate '%s': %w", w.path, err)
	}

	if err := w.open(); err != nil {
		return err
	}

	w.enforceRetention()
	return nil
}

// enforceRetention deletes the oldest members of the rotation set until
// at most maxOldFiles remain. maxOldFiles <= 0 means unlimited: no
// deletion. Rotated names encode their timestamp such that lexicographic
// order equals temporal order, so a plain string sort suffices.
func (w *fileWriter) enforceRetention() {
	if w.maxOldFiles <= 0 {
		return
	}

	rotated := w.rotationSet()
	if len(rotated) <= w.maxOldFiles {
		return
	}
	sort.Strings(rotated)

	toDelete := rotated[:len(rotated)-w.maxOldFiles]
	for _, name := range toDelete {
		os.Remove(filepath.Join(w.dir, name))
	}
}

// rotationSet lists file names in dir starting with stem and matching
// ext, excluding the current static file itself.
func (w *fileWriter) rotationSet() []string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil
	}
	staticName := w.stem + w.ext
	prefix := w.stem + "."

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == staticName {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if w.ext != "" && !strings.HasSuffix(name, w.ext) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (w *fileWriter) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
