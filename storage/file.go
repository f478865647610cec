package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File keeps the record in a 0600 JSON file. Writes go through a temp file and
// a rename so a concurrent reader never sees a partial document.
type File struct {
	path string

	mu          sync.Mutex
	lastWritten []byte
	wroteOnce   bool
}

var _ Backend = (*File)(nil)

// NewFile prepares the parent directory of path with 0700 permissions.
func NewFile(path string) (*File, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create session directory: %v", ErrUnavailable, err)
	}
	return &File{path: path}, nil
}

// DefaultFilePath returns ~/.gosession/<name>.json.
func DefaultFilePath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".gosession", name+".json"), nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

func (f *File) Load(context.Context) (Record, bool, error) {
	data, ok, err := f.read()
	if err != nil || !ok {
		return Record{}, ok, err
	}
	rec, err := DecodeRecord(data)
	if err != nil {
		return Record{}, true, err
	}
	return rec, true, nil
}

func (f *File) Save(_ context.Context, rec Record) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f.lastWritten = data
	f.wroteOnce = true
	return nil
}

func (f *File) Remove(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.lastWritten = nil
	f.wroteOnce = true
	return nil
}

// Watch observes the parent directory and re-reads the file on every event
// touching it. Values equal to the previous observation, or to this
// instance's own last write, are not reported.
func (f *File) Watch(ctx context.Context) (<-chan Notification, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", ErrUnavailable, filepath.Dir(f.path), err)
	}

	observed, _, _ := f.read()

	out := make(chan Notification)
	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != f.path {
					continue
				}
				current, exists, err := f.read()
				if err != nil {
					if !f.emit(ctx, out, Notification{Key: f.path, Err: err}) {
						return
					}
					continue
				}
				if !exists {
					current = nil
				}
				if bytes.Equal(current, observed) && (current == nil) == (observed == nil) {
					continue
				}
				observed = current
				if f.isOwnWrite(current) {
					continue
				}
				if !f.emit(ctx, out, Notification{Key: f.path, NewValue: current}) {
					return
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if !f.emit(ctx, out, Notification{Key: f.path, Err: fmt.Errorf("%w: %v", ErrUnavailable, werr)}) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (f *File) emit(ctx context.Context, out chan<- Notification, n Notification) bool {
	select {
	case out <- n:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *File) isOwnWrite(current []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.wroteOnce {
		return false
	}
	return bytes.Equal(current, f.lastWritten) && (current == nil) == (f.lastWritten == nil)
}

func (f *File) read() ([]byte, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, true, nil
}

func (f *File) Close() error { return nil }
