// Package archive streams conversion outputs into a single ZIP container
// whose total size is unknown in advance. Entries are appended in arrival
// order and written straight through to the underlying sink, so producers
// are suspended by sink backpressure instead of buffering in memory.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrStreamingFailure reports a failure of the downstream sink. Once
	// bytes have started flowing this cannot be downgraded to a clean
	// error response.
	ErrStreamingFailure = errors.New("streaming failure")

	// ErrDuplicateName reports an entry name that was already appended.
	ErrDuplicateName = errors.New("duplicate entry name")

	// ErrClosed reports an append to a finalized or aborted writer.
	ErrClosed = errors.New("archive writer closed")
)

// Writer appends named entries to a ZIP stream. Safe for concurrent
// producers; appends are serialized.
type Writer struct {
	mu     sync.Mutex
	zw     *zip.Writer
	names  map[string]struct{}
	closed bool
	count  int
}

// NewWriter starts a ZIP container on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw:    zip.NewWriter(w),
		names: make(map[string]struct{}),
	}
}

// Append writes one named entry to the container. Every accepted entry
// appears exactly once; a name that was already used is rejected
// (disambiguation is the caller's responsibility).
func (w *Writer) Append(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, used := w.names[name]; used {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamingFailure, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamingFailure, err)
	}

	w.names[name] = struct{}{}
	w.count++
	return nil
}

// Len returns the number of entries appended so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close finalizes the container: the trailer is written and no further
// entries are accepted. Call only after all expected entries are appended.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamingFailure, err)
	}
	return nil
}

// Abort stops the writer without finalizing the container. The truncated
// stream is left as-is for the transport to terminate.
func (w *Writer) Abort() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
