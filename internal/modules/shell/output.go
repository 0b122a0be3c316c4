package shell

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"
)

// cappedBuffer принимает поток процесса целиком, но хранит не больше limit байт.
// Лишнее отбрасывается без ошибки, чтобы процесс не получил SIGPIPE.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := b.limit - b.buf.Len()
	if len(p) > remaining {
		b.truncated = true
		if remaining > 0 {
			b.buf.Write(p[:remaining])
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

// String возвращает собранный вывод без краевых пробелов и с маркером обрезки.
func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if !b.truncated {
		return strings.TrimSpace(s)
	}
	return strings.TrimLeft(trimPartialRune(s), " \t\r\n") + truncMarker
}

// trimPartialRune отрезает последний UTF-8 символ, если лимит разрезал его посередине.
func trimPartialRune(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i]
			}
			return s
		}
	}
	return s
}
