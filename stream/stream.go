// Package stream normalizes adapter output into one lazy, single-owner
// consumption contract with bounded collection and guaranteed teardown.
package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrConsumed indicates a second consumption attempt on a stream
	// that has already been collected or closed.
	ErrConsumed = errors.New("stream already consumed")

	// ErrOutputLimit indicates collection exceeded the byte ceiling.
	ErrOutputLimit = errors.New("output exceeds collection limit")
)

// chunkSize is the read granularity during collection.
const chunkSize = 32 * 1024

// Stream wraps an adapter's native output reader. It is owned by exactly
// one consumer: either incremental Read calls or a single Collect, never
// both, and never twice.
type Stream struct {
	source    io.ReadCloser
	mu        sync.Mutex
	reading   bool
	collected bool
	closed    bool
}

// New wraps a native output reader.
func New(source io.ReadCloser) *Stream {
	return &Stream{source: source}
}

// Read pulls the next chunk directly from the underlying reader. Once a
// stream has been collected or closed, Read fails with ErrConsumed.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.collected || s.closed {
		s.mu.Unlock()
		return 0, ErrConsumed
	}
	s.reading = true
	s.mu.Unlock()

	return s.source.Read(p)
}

// Collect drains the stream into a single buffer, failing with
// ErrOutputLimit when more than maxBytes arrive. The chunks are
// assembled with one final allocation. The underlying reader is closed
// on success, overflow, and error alike.
func (s *Stream) Collect(maxBytes int) ([]byte, error) {
	s.mu.Lock()
	if s.collected || s.closed || s.reading {
		s.mu.Unlock()
		return nil, ErrConsumed
	}
	s.collected = true
	s.mu.Unlock()

	defer s.Close()

	var chunks [][]byte
	total := 0
	for {
		chunk := make([]byte, chunkSize)
		n, err := s.source.Read(chunk)
		if n > 0 {
			total += n
			if maxBytes > 0 && total > maxBytes {
				return nil, fmt.Errorf("%w: %d > %d bytes", ErrOutputLimit, total, maxBytes)
			}
			chunks = append(chunks, chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading output: %w", err)
		}
	}

	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out, nil
}

// CollectText collects up to maxBytes and returns the output as text.
func (s *Stream) CollectText(maxBytes int) (string, error) {
	out, err := s.Collect(maxBytes)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Close releases the underlying reader. Idempotent; always safe after
// success, early abandonment, or error.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.source.Close()
}

// Consumed reports whether the stream can no longer be read.
func (s *Stream) Consumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collected || s.closed
}
