package extractnow

import (
	"bytes"
	"regexp"
	"strconv"
	"sync"
)

// Package file progress.go contains the archiver console output parsing.

// StderrPrefix marks the archiver standard error lines passed to the log callback.
const StderrPrefix = "ERR: "

// percentRx matches a whole word percentage. The percent sign is a non-word character
// so the trailing boundary is a non-word character or the end of the line.
var percentRx = regexp.MustCompile(`\b(\d{1,3})%(?:\W|$)`)

// Percent returns the first progress percentage found in the line.
// The percentage must be a whole word of one to three digits followed by a percent sign
// and it is clamped to the range 0 to 100.
//
//	Percent("  45% 3 - docs/readme.txt") // 45, true
//	Percent("Everything is Ok")          // 0, false
func Percent(line string) (int, bool) {
	m := percentRx.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	p, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return min(max(p, 0), 100), true
}

// lineWriter is an io.Writer that splits the written bytes into lines.
// The line terminators are a line feed, a carriage return, or both.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	cr   bool
	emit func(line string)
}

func newLineWriter(emit func(line string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(p)
	for len(p) > 0 {
		if w.cr && p[0] == '\n' {
			// the second byte of a CRLF pair
			w.cr = false
			p = p[1:]
			continue
		}
		w.cr = false
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			w.buf = append(w.buf, p...)
			break
		}
		w.buf = append(w.buf, p[:i]...)
		w.cr = p[i] == '\r'
		w.line()
		p = p[i+1:]
	}
	return n, nil
}

// Flush emits any unterminated text as a final line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.line()
	}
}

func (w *lineWriter) line() {
	s := string(w.buf)
	w.buf = w.buf[:0]
	w.emit(s)
}
