package tui

import (
	"os"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
)

// KeyKind classifies a parsed input event.
type KeyKind int

const (
	KeyNone KeyKind = iota
	KeyEscape
	KeyArrowUp
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
	KeyMouse
	KeyEnter
	KeyBackspace
	KeyTab
	KeyCtrl
	KeyRune
)

// KeyEvent is one parsed input event.
type KeyEvent struct {
	Kind KeyKind
	Ctrl rune // valid when Kind==KeyCtrl: 'a'..'z'
	R    rune // valid when Kind==KeyRune
}

const sequenceBufferCap = 64
const escapeTimeout = 100 * time.Millisecond

// InputPipeline parses raw bytes handed to Feed into KeyEvents and owns the
// raw-mode state of its fd. It does not read or poll the fd itself.
type InputPipeline struct {
	fd       int
	oldState *term.State

	buf        []byte
	bufStarted time.Time

	debouncer *KeyDebouncer
}

// NewInputPipeline puts fd into raw mode and returns a pipeline reading
// from it. Callers must call Restore on every exit path.
func NewInputPipeline(f *os.File) (*InputPipeline, error) {
	fd := int(f.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return &InputPipeline{fd: fd, oldState: old, debouncer: NewKeyDebouncer(100 * time.Millisecond)}, nil
}

// Restore returns the terminal to its pre-raw-mode state.
func (p *InputPipeline) Restore() error {
	if p.oldState == nil {
		return nil
	}
	return term.Restore(p.fd, p.oldState)
}

// Feed appends newly read bytes and returns every complete event parsed
// out of the buffer, dropping malformed or over-length sequences.
func (p *InputPipeline) Feed(data []byte) []KeyEvent {
	if len(p.buf) == 0 {
		p.bufStarted = time.Now()
	}
	p.buf = append(p.buf, data...)
	if len(p.buf) > sequenceBufferCap {
		p.buf = p.buf[len(p.buf)-sequenceBufferCap:]
	}

	var events []KeyEvent
	for len(p.buf) > 0 {
		ev, consumed, ok := parseOne(p.buf)
		if !ok {
			if time.Since(p.bufStarted) > escapeTimeout {
				p.buf = nil // incomplete sequence aged out, drop it
			}
			break
		}
		p.buf = p.buf[consumed:]
		p.bufStarted = time.Now()
		if ev.Kind != KeyNone && p.debouncer.Allow(ev) {
			events = append(events, ev)
		}
	}
	return events
}

// parseOne attempts to parse a single event from the front of buf.
// ok=false means "need more bytes" (not malformed).
func parseOne(buf []byte) (KeyEvent, int, bool) {
	b0 := buf[0]
	switch {
	case b0 == 0x1B:
		if len(buf) == 1 {
			return KeyEvent{}, 0, false // wait for more or timeout
		}
		if buf[1] == 0x1B {
			return KeyEvent{Kind: KeyEscape}, 2, true
		}
		if buf[1] == '[' {
			return parseCSI(buf)
		}
		if buf[1] == 'M' {
			if len(buf) < 6 {
				return KeyEvent{}, 0, false
			}
			return KeyEvent{Kind: KeyMouse}, 6, true
		}
		return KeyEvent{Kind: KeyEscape}, 1, true
	case b0 == 0x0D || b0 == 0x0A:
		return KeyEvent{Kind: KeyEnter}, 1, true
	case b0 == 0x7F || b0 == 0x08:
		return KeyEvent{Kind: KeyBackspace}, 1, true
	case b0 == 0x09:
		return KeyEvent{Kind: KeyTab}, 1, true
	case b0 >= 0x01 && b0 <= 0x1A:
		return KeyEvent{Kind: KeyCtrl, Ctrl: rune('a' + b0 - 1)}, 1, true
	case b0 >= 0x80:
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError {
			if !utf8.FullRune(buf) {
				return KeyEvent{}, 0, false
			}
			return KeyEvent{}, 1, true // malformed: drop one byte, emit nothing
		}
		return KeyEvent{Kind: KeyRune, R: r}, size, true
	default:
		r, size := utf8.DecodeRune(buf)
		return KeyEvent{Kind: KeyRune, R: r}, size, true
	}
}

func parseCSI(buf []byte) (KeyEvent, int, bool) {
	if len(buf) < 3 {
		return KeyEvent{}, 0, false
	}
	if buf[2] == '<' {
		// SGR mouse sequence: consume through the terminating 'M'/'m'.
		for i := 3; i < len(buf); i++ {
			if buf[i] == 'M' || buf[i] == 'm' {
				return KeyEvent{Kind: KeyMouse}, i + 1, true
			}
		}
		return KeyEvent{}, 0, false
	}
	switch buf[2] {
	case 'A':
		return KeyEvent{Kind: KeyArrowUp}, 3, true
	case 'B':
		return KeyEvent{Kind: KeyArrowDown}, 3, true
	case 'C':
		return KeyEvent{Kind: KeyArrowRight}, 3, true
	case 'D':
		return KeyEvent{Kind: KeyArrowLeft}, 3, true
	}
	return KeyEvent{}, 1, true // unrecognized CSI: drop the escape byte only
}

// KeyDebouncer rejects repeated identical key events arriving within
// window of each other.
type KeyDebouncer struct {
	window   time.Duration
	lastKey  KeyEvent
	lastTime time.Time
}

// NewKeyDebouncer builds a debouncer with the given window.
func NewKeyDebouncer(window time.Duration) *KeyDebouncer {
	return &KeyDebouncer{window: window}
}

// Allow reports whether ev should be delivered (not a debounced repeat).
func (d *KeyDebouncer) Allow(ev KeyEvent) bool {
	now := time.Now()
	if ev == d.lastKey && now.Sub(d.lastTime) < d.window {
		d.lastTime = now
		return false
	}
	d.lastKey = ev
	d.lastTime = now
	return true
}
