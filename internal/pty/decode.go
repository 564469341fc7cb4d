package pty

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// outputDecoder turns raw pty output into valid UTF-8. Invalid bytes become
// U+FFFD. A multi-byte sequence cut off at the end of a chunk is held back
// and completed by the next chunk. Not safe for concurrent use.
type outputDecoder struct {
	dec     *encoding.Decoder
	pending []byte
}

func newOutputDecoder() *outputDecoder {
	return &outputDecoder{dec: unicode.UTF8.NewDecoder()}
}

func (d *outputDecoder) Decode(chunk []byte) string {
	buf := chunk
	if len(d.pending) > 0 {
		buf = append(d.pending, chunk...)
		d.pending = nil
	}

	cut := incompleteTail(buf)
	if cut < len(buf) {
		d.pending = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	if len(buf) == 0 {
		return ""
	}

	out, err := d.dec.Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
	}
	return string(out)
}

// incompleteTail returns the offset of a trailing multi-byte sequence that
// could still be completed by more input, or len(b) if there is none.
func incompleteTail(b []byte) int {
	stop := len(b) - utf8.UTFMax
	if stop < 0 {
		stop = -1
	}
	for i := len(b) - 1; i > stop; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
