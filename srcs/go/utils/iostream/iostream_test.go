package iostream

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/lsds/collsweep/srcs/go/utils/xterm"
	"github.com/stretchr/testify/assert"
)

func Test_Tee(t *testing.T) {
	var a, b bytes.Buffer
	err := Tee(strings.NewReader("x\ny\nz"), &a, &b)
	assert.NoError(t, err)
	assert.Equal(t, "x\ny\nz\n", a.String())
	assert.Equal(t, a.String(), b.String())
}

func Test_Lines(t *testing.T) {
	l := &Lines{Limit: 2}
	l.Write([]byte("one\ntw"))
	l.Write([]byte("o\nthree\nfo"))
	assert.Equal(t, []string{"two", "three", "fo"}, l.Get())
}

func Test_Stream(t *testing.T) {
	var out, errs Lines
	r := StdReaders{
		Stdout: strings.NewReader("a\nb\n"),
		Stderr: strings.NewReader("oops\n"),
	}
	r.Stream(&StdWriters{Stdout: &out, Stderr: &errs}).Wait()
	assert.Equal(t, []string{"a", "b"}, out.Get())
	assert.Equal(t, []string{"oops"}, errs.Get())
}

func Test_EchoRedirector(t *testing.T) {
	var mu sync.Mutex
	var out, errs bytes.Buffer
	r := StdReaders{
		Stdout: strings.NewReader("1200 samples\ndone"),
		Stderr: strings.NewReader("warning: no pmu\n"),
	}
	r.Stream(newEchoRedirector("host-1", xterm.NoColor, &mu, &out, &errs)).Wait()
	assert.Equal(t, "host-1 | 1200 samples\nhost-1 | done\n", out.String())
	assert.Equal(t, "host-1 "+xterm.Warn.S("!")+" warning: no pmu\n", errs.String())
}
