package iostream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Tee copies r line by line into every writer.
func Tee(r io.Reader, ws ...io.Writer) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
			}
			for _, w := range ws {
				fmt.Fprintln(w, line)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

type StdReaders struct {
	Stdout io.Reader
	Stderr io.Reader
}

type StdWriters struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Stream pumps both readers into the writers; Wait returns once both hit EOF.
func (r *StdReaders) Stream(ws ...*StdWriters) interface{ Wait() } {
	var outs, errs []io.Writer
	for _, w := range ws {
		outs = append(outs, w.Stdout)
		errs = append(errs, w.Stderr)
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		Tee(r.Stdout, outs...)
		wg.Done()
	}()
	go func() {
		Tee(r.Stderr, errs...)
		wg.Done()
	}()
	return &wg
}

// Lines remembers the last Limit lines written to it.
type Lines struct {
	sync.Mutex
	Limit int
	lines []string
	buf   []byte
}

const defaultLinesLimit = 1000

func (l *Lines) Write(bs []byte) (int, error) {
	l.Lock()
	defer l.Unlock()
	l.buf = append(l.buf, bs...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.push(string(l.buf[:i]))
		l.buf = l.buf[i+1:]
	}
	return len(bs), nil
}

func (l *Lines) push(line string) {
	limit := l.Limit
	if limit <= 0 {
		limit = defaultLinesLimit
	}
	l.lines = append(l.lines, line)
	if len(l.lines) > limit {
		l.lines = l.lines[len(l.lines)-limit:]
	}
}

// Get returns the collected lines, including a trailing partial line.
func (l *Lines) Get() []string {
	l.Lock()
	defer l.Unlock()
	lines := append([]string(nil), l.lines...)
	if len(l.buf) > 0 {
		lines = append(lines, string(l.buf))
	}
	return lines
}
