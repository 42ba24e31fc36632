package xterm

import (
	"bytes"
	"fmt"
)

type Color interface {
	B(text string) []byte
	S(text string) string
}

// ColorSet assigns stable colors to hosts by their index.
type ColorSet []Color

func (cs ColorSet) Choose(i int) Color {
	if len(cs) == 0 || i < 0 {
		return NoColor
	}
	return cs[i%len(cs)]
}

type color struct {
	f uint8
	b uint8
}

var (
	Green     = color{f: 32, b: 1}
	Yellow    = color{f: 33, b: 1}
	Blue      = color{f: 34, b: 1}
	Red       = color{f: 35, b: 1}
	LightBlue = color{f: 36, b: 1}
	Grey      = color{f: 37, b: 1}
)

var (
	HostColors = ColorSet{
		Green,
		Blue,
		Yellow,
		LightBlue,
	}

	Warn = Red
	OK   = Green
)

func (c color) bs(text string) *bytes.Buffer {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "\x1b[%d;%dm", c.b, c.f)
	buf.WriteString(text)
	buf.WriteString("\x1b[m")
	return buf
}

func (c color) B(text string) []byte { return c.bs(text).Bytes() }

func (c color) S(text string) string { return c.bs(text).String() }

var NoColor = noColor{}

type noColor struct{}

func (noColor) B(text string) []byte { return []byte(text) }

func (noColor) S(text string) string { return text }
