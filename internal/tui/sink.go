package tui

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Sink is the exclusively-held terminal writer: the one-writer-per-frame
// boundary. It owns alt-screen enter/exit and SIGPIPE handling; it holds no
// raw-mode terminal state (InputPipeline.Restore restores that).
type Sink struct {
	w            io.Writer
	isTTY        bool
	altScreen    bool
	sigpipeCount int64
	eagainCount  int64

	restoreSIGPIPE func()
}

// NewSink wraps f (typically os.Stdout), using an ANSI-passthrough writer
// when f is a real TTY (mattn/go-colorable) and plain passthrough otherwise.
func NewSink(f *os.File) *Sink {
	s := &Sink{isTTY: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
	if s.isTTY {
		s.w = colorable.NewColorable(f)
	} else {
		s.w = f
	}
	s.restoreSIGPIPE = ignoreSIGPIPE()
	return s
}

// ignoreSIGPIPE installs signal.Ignore(syscall.SIGPIPE) and returns a func
// that restores default SIGPIPE handling.
func ignoreSIGPIPE() func() {
	signal.Ignore(syscall.SIGPIPE)
	return func() { signal.Reset(syscall.SIGPIPE) }
}

// EnterAltScreen switches to the alternate screen buffer.
func (s *Sink) EnterAltScreen() error {
	if s.altScreen {
		return nil
	}
	_, err := io.WriteString(s.w, "\x1b[?1049h")
	s.altScreen = true
	return err
}

// ExitAltScreen restores the primary screen buffer; safe to call multiple
// times and from a deferred recover() path.
func (s *Sink) ExitAltScreen() error {
	if !s.altScreen {
		return nil
	}
	_, err := io.WriteString(s.w, "\x1b[?1049l")
	s.altScreen = false
	return err
}

// Close restores SIGPIPE handling and exits the alt screen if still
// active. Intended to run under defer from process entry, including on
// the panic-recover path.
func (s *Sink) Close() error {
	err := s.ExitAltScreen()
	if s.restoreSIGPIPE != nil {
		s.restoreSIGPIPE()
	}
	return err
}

// Write satisfies io.Writer so DiffRenderer.flush can target a Sink
// directly; EAGAIN occurrences are counted and reported by EAGAINCount.
func (s *Sink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil && isRetryable(err) {
		s.eagainCount++
	}
	return n, err
}

func (s *Sink) EAGAINCount() int64 { return s.eagainCount }

// isRetryable reports whether err is EAGAIN/EWOULDBLOCK, the only class
// DiffRenderer.flush retries
func isRetryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// IsTTY reports whether the sink's underlying fd is a real terminal.
func (s *Sink) IsTTY() bool { return s.isTTY }
