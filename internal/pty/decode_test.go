package pty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncompleteTail(t *testing.T) {
	euro := "€" // 3 bytes
	grin := "😀" // 4 bytes

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"ascii", "abc", 3},
		{"complete rune", "a" + euro, 4},
		{"one of three", "a" + euro[:1], 1},
		{"two of three", "a" + euro[:2], 1},
		{"three of four", "ab" + grin[:3], 2},
		{"stray continuation", "a\x82", 2},
		{"invalid lead", "a\xff", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, incompleteTail([]byte(tt.in)))
		})
	}
}

func TestOutputDecoder(t *testing.T) {
	d := newOutputDecoder()

	assert.Equal(t, "plain", d.Decode([]byte("plain")))
	assert.Equal(t, "a�b", d.Decode([]byte("a\xffb")))

	grin := []byte("😀")
	assert.Equal(t, "", d.Decode(grin[:1]))
	assert.Equal(t, "", d.Decode(grin[1:3]))
	assert.Equal(t, "😀!", d.Decode(append(grin[3:], '!')))
}

func TestOutputDecoderBrokenContinuation(t *testing.T) {
	d := newOutputDecoder()

	// A held-back lead byte followed by ASCII is invalid, not silently dropped.
	assert.Equal(t, "x", d.Decode([]byte{'x', 0xe2}))
	out := d.Decode([]byte("y"))
	assert.Equal(t, "�y", out)
}
