package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoCode is reported by ProcessCode for blank input.
var ErrNoCode = errors.New("scanner: empty code")

// Entry is one processed scan.
type Entry struct {
	At     time.Time
	Code   string
	Result Result
	Err    error
}

// Config tunes the loop.
type Config struct {
	// Interval is the frame polling period. Defaults to 100ms.
	Interval time.Duration
	// Debounce suppresses the same code seen again within this window.
	// Defaults to 2s.
	Debounce time.Duration
	// HistorySize bounds the rolling history. Defaults to 10.
	HistorySize int
	// CustomerName is sent with every redemption when set.
	CustomerName string
	// NoColor disables ANSI colors in rendered lines.
	NoColor bool
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.Debounce <= 0 {
		c.Debounce = 2 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 10
	}
	return c
}

// Loop polls a FrameSource and redeems the codes it decodes.
type Loop struct {
	src      FrameSource
	dec      Decoder
	redeemer Redeemer
	out      io.Writer
	cfg      Config
	now      func() time.Time

	mu       sync.Mutex
	history  []Entry // newest first
	lastCode string
	lastAt   time.Time
}

// NewLoop wires a loop. out receives one rendered line per scan; pass
// io.Discard to render elsewhere.
func NewLoop(src FrameSource, dec Decoder, r Redeemer, out io.Writer, cfg Config) *Loop {
	if dec == nil {
		dec = TextDecoder{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Loop{src: src, dec: dec, redeemer: r, out: out, cfg: cfg.withDefaults(), now: time.Now}
}

// Run starts the source and polls it until ctx is done or the source reports
// io.EOF, both of which end the loop cleanly. Any other source error is
// returned. The source is stopped on every exit path once Start succeeded.
func (l *Loop) Run(ctx context.Context) (err error) {
	if err := l.src.Start(ctx); err != nil {
		return fmt.Errorf("start frame source: %w", err)
	}
	defer func() {
		if serr := l.src.Stop(); serr != nil && err == nil {
			err = fmt.Errorf("stop frame source: %w", serr)
		}
	}()

	log := zerolog.Ctx(ctx)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Drain everything that is ready so a burst is not throttled to one
		// frame per tick.
		for {
			f, rerr := l.src.Read()
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			if rerr != nil {
				return fmt.Errorf("read frame: %w", rerr)
			}
			if f == nil {
				break
			}
			code, ok := l.dec.Decode(f)
			if !ok || l.debounced(code) {
				continue
			}
			e := l.ProcessCode(ctx, code)
			if e.Err != nil {
				log.Warn().Err(e.Err).Str("code", code).Msg("scan failed")
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// debounced reports whether code repeats the previous scan within the
// debounce window, and records it otherwise.
func (l *Loop) debounced(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if code == l.lastCode && now.Sub(l.lastAt) < l.cfg.Debounce {
		return true
	}
	l.lastCode, l.lastAt = code, now
	return false
}

// ProcessCode validates code and redeems it when valid. The entry is added to
// the history and rendered to the loop's writer.
func (l *Loop) ProcessCode(ctx context.Context, code string) Entry {
	e := Entry{At: l.now(), Code: strings.TrimSpace(code)}
	switch {
	case e.Code == "":
		e.Err = ErrNoCode
	default:
		e.Result, e.Err = l.redeemer.Validate(ctx, e.Code)
		if e.Err == nil && e.Result.Outcome == OutcomeValid {
			e.Result, e.Err = l.redeemer.Redeem(ctx, e.Code, l.cfg.CustomerName)
		}
	}
	if e.Err != nil {
		e.Result = Result{Type: "error", ErrorCode: OutcomeUnreachable, Outcome: OutcomeUnreachable, Message: e.Err.Error()}
	}

	l.mu.Lock()
	l.history = append([]Entry{e}, l.history...)
	if len(l.history) > l.cfg.HistorySize {
		l.history = l.history[:l.cfg.HistorySize]
	}
	l.mu.Unlock()

	fmt.Fprintln(l.out, RenderLine(e, !l.cfg.NoColor))
	return e
}

// History returns a copy of the rolling history, newest first.
func (l *Loop) History() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.history...)
}
