package iostream

import (
	"io"
	"os"
	"sync"

	"github.com/lsds/collsweep/srcs/go/utils/xterm"
)

// echoWriter writes every line it receives behind a fixed tag. Tee hands it
// whole lines, so a line from one host never interleaves with another's.
type echoWriter struct {
	mu  *sync.Mutex
	tag []byte
	w   io.Writer
}

func (e *echoWriter) Write(bs []byte) (int, error) {
	line := make([]byte, 0, len(e.tag)+len(bs))
	line = append(append(line, e.tag...), bs...)
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(line); err != nil {
		return 0, err
	}
	return len(bs), nil
}

var terminal sync.Mutex

// NewEchoRedirector echoes a host's output to the terminal as
// "name | line", with stderr lines marked "name ! line".
func NewEchoRedirector(name string, c xterm.Color) *StdWriters {
	return newEchoRedirector(name, c, &terminal, os.Stdout, os.Stderr)
}

func newEchoRedirector(name string, c xterm.Color, mu *sync.Mutex, stdout, stderr io.Writer) *StdWriters {
	if c == nil {
		c = xterm.NoColor
	}
	return &StdWriters{
		Stdout: &echoWriter{mu: mu, tag: []byte(c.S(name) + " | "), w: stdout},
		Stderr: &echoWriter{mu: mu, tag: []byte(c.S(name) + " " + xterm.Warn.S("!") + " "), w: stderr},
	}
}
