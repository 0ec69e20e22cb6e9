package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// ErrClosed is returned for writes after Close
	ErrClosed = errors.New("archive is closed")
	// ErrDuplicateEntry is returned when an entry name is written twice
	ErrDuplicateEntry = errors.New("duplicate archive entry")
)

// Writer is an append-only zip archive. The container is written to a
// temporary file next to the target and renamed into place on Close, so
// an interrupted run never leaves a truncated archive under the final name.
type Writer struct {
	path     string
	tmp      *os.File
	zw       *zip.Writer
	names    map[string]struct{}
	modified time.Time
	closed   bool
	closeErr error
	mu       sync.Mutex
}

// FileMode is the permission of the finished archive. The temporary file
// starts out private and is opened up just before it is moved into place.
const FileMode os.FileMode = 0644

// Open creates the archive at path, creating parent directories as needed
func Open(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary archive: %w", err)
	}

	return &Writer{
		path:     path,
		tmp:      tmp,
		zw:       zip.NewWriter(tmp),
		names:    make(map[string]struct{}),
		modified: time.Now(),
	}, nil
}

// Path returns the final archive location
func (w *Writer) Path() string {
	return w.path
}

// WriteEntry stores data under name
func (w *Writer) WriteEntry(name string, data []byte, compress bool) error {
	return w.CreateEntry(name, compress, func(dst io.Writer) error {
		_, err := dst.Write(data)
		return err
	})
}

// CreateEntry opens name for writing and passes the entry to fill. The
// entry is complete when fill returns; it cannot be reopened. Data goes
// straight into the container without buffering the whole entry.
func (w *Writer) CreateEntry(name string, compress bool, fill func(io.Writer) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if name == "" {
		return errors.New("archive entry name is empty")
	}
	if _, ok := w.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}

	method := zip.Store
	if compress {
		method = zip.Deflate
	}
	dst, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: w.modified,
	})
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	w.names[name] = struct{}{}

	if err := fill(dst); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	return nil
}

// WriteJSON stores v as indented JSON, deflated
func (w *Writer) WriteJSON(name string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return w.WriteEntry(name, buf.Bytes(), true)
}

// Entries returns the number of entries written so far
func (w *Writer) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.names)
}

// Close finalizes the container and moves it to its final path. Calling
// Close again returns the first result.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.closeErr
	}
	w.closed = true
	w.closeErr = w.finalize()
	return w.closeErr
}

func (w *Writer) finalize() error {
	tmpName := w.tmp.Name()

	err := w.zw.Close()
	if err == nil {
		err = w.tmp.Chmod(FileMode)
	}
	if closeErr := w.tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}
