package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

// ReaderSource turns each line of an io.Reader into a frame. It serves
// keyboard-wedge scanners on stdin and scripted input in tests.
type ReaderSource struct {
	r     io.Reader
	lines chan Frame

	mu      sync.Mutex
	cancel  context.CancelFunc
	err     error // set before lines is closed
	started bool
	stopped bool
}

// NewReaderSource wraps r. Nothing is read until Start.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, lines: make(chan Frame, 64)}
}

// Start launches the reader goroutine.
func (s *ReaderSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scanner: source already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			f := make(Frame, len(sc.Bytes()))
			copy(f, sc.Bytes())
			select {
			case s.lines <- f:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
		s.err = sc.Err()
		if s.err == nil {
			s.err = io.EOF
		}
	}()
	return nil
}

// Read returns the next buffered line without blocking.
func (s *ReaderSource) Read() (Frame, error) {
	select {
	case f, ok := <-s.lines:
		if !ok {
			return nil, s.err
		}
		return f, nil
	default:
		return nil, nil
	}
}

// Stop releases the source. A reader goroutine blocked on an unterminated
// line exits at the next line or when the underlying reader closes.
func (s *ReaderSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.cancel == nil {
		return nil
	}
	s.stopped = true
	s.cancel()
	return nil
}
