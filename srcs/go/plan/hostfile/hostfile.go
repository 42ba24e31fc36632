package hostfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// Host is one line of the host list. Index is its position in that list.
type Host struct {
	Index int
	User  string
	Addr  string
	Port  int
}

func (h Host) String() string {
	s := h.Addr
	if h.Port > 0 {
		s = net.JoinHostPort(h.Addr, strconv.Itoa(h.Port))
	}
	if len(h.User) > 0 {
		s = h.User + "@" + s
	}
	return s
}

type HostList []Host

// Addrs returns the bare addresses in list order.
func (hl HostList) Addrs() []string {
	addrs := make([]string, len(hl))
	for i, h := range hl {
		addrs[i] = h.Addr
	}
	return addrs
}

func (hl HostList) String() string {
	var ss []string
	for _, h := range hl {
		ss = append(ss, h.String())
	}
	return strings.Join(ss, ",")
}

var (
	errEmptyHostList = errors.New("empty host list")
	errInvalidHost   = errors.New("invalid host")
)

func ParseFile(filename, defaultUser string) (HostList, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, defaultUser)
}

// Read parses one [user@]host[:port] per line. Blank lines and # comments are skipped.
func Read(r io.Reader, defaultUser string) (HostList, error) {
	var hl HostList
	scanner := bufio.NewScanner(r)
	var lineno int
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(trimComment(scanner.Text()))
		if len(line) == 0 {
			continue
		}
		h, err := parseLine(line, defaultUser)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", lineno, err)
		}
		h.Index = len(hl)
		hl = append(hl, *h)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(hl) == 0 {
		return nil, errEmptyHostList
	}
	return hl, nil
}

func Parse(text, defaultUser string) (HostList, error) {
	return Read(strings.NewReader(text), defaultUser)
}

func parseLine(line, defaultUser string) (*Host, error) {
	if strings.ContainsAny(line, " \t") {
		return nil, fmt.Errorf("%v: %q", errInvalidHost, line)
	}
	h := Host{User: defaultUser, Addr: line}
	if i := strings.LastIndex(line, "@"); i >= 0 {
		h.User, h.Addr = line[:i], line[i+1:]
		if len(h.User) == 0 {
			return nil, fmt.Errorf("%v: empty user in %q", errInvalidHost, line)
		}
	}
	if host, port, err := net.SplitHostPort(h.Addr); err == nil {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("%v: bad port in %q", errInvalidHost, line)
		}
		h.Addr, h.Port = host, n
	}
	if len(h.Addr) == 0 {
		return nil, fmt.Errorf("%v: empty address in %q", errInvalidHost, line)
	}
	return &h, nil
}

func trimComment(line string) string {
	parts := strings.SplitN(line, "#", 2)
	return parts[0]
}
