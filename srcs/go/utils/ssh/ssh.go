// Package ssh is a simple wrapper for golang.org/x/crypto/ssh
package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"github.com/kevinburke/ssh_config"
	"github.com/lsds/collsweep/srcs/go/utils/iostream"
	"github.com/lsds/collsweep/srcs/go/utils/xterm"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var defaultTimeout = 8 * time.Second

const defaultPort = 22

// Config identifies one remote host. Zero fields are filled from ~/.ssh/config.
type Config struct {
	User         string
	Host         string
	Port         int
	KeyFiles     []string
	ForwardAgent bool
	Timeout      time.Duration
}

// Options control where a client's remote output goes.
type Options struct {
	Name    string
	Color   xterm.Color
	Verbose bool
	LogDir  string
}

// Settings is the subset of ssh_config.UserSettings used to resolve aliases.
type Settings interface {
	Get(alias, key string) string
}

var DefaultSettings Settings = ssh_config.DefaultUserSettings

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

func homeDir() string {
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return os.Getenv("HOME")
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}

// Resolve completes config with values from settings, then with defaults.
func Resolve(config Config, settings Settings) Config {
	alias := config.Host
	if settings != nil {
		if hostname := settings.Get(alias, "HostName"); len(hostname) > 0 {
			config.Host = hostname
		}
		if len(config.User) == 0 {
			config.User = settings.Get(alias, "User")
		}
		if config.Port == 0 {
			if p, err := strconv.Atoi(settings.Get(alias, "Port")); err == nil {
				config.Port = p
			}
		}
		if len(config.KeyFiles) == 0 {
			if f := settings.Get(alias, "IdentityFile"); len(f) > 0 && f != "~/.ssh/identity" {
				config.KeyFiles = []string{f}
			}
		}
	}
	if len(config.User) == 0 {
		config.User = currentUser()
	}
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if len(config.KeyFiles) == 0 {
		config.KeyFiles = []string{`~/.ssh/id_ed25519`, `~/.ssh/id_rsa`}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return config
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func authMethods(config Config) ([]ssh.AuthMethod, agent.ExtendedAgent) {
	var methods []ssh.AuthMethod
	var ag agent.ExtendedAgent
	if sock := os.Getenv("SSH_AUTH_SOCK"); len(sock) > 0 {
		if conn, err := net.Dial("unix", sock); err == nil {
			ag = agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(ag.Signers))
		}
	}
	var signers []ssh.Signer
	for _, f := range config.KeyFiles {
		buf, err := os.ReadFile(expandHome(f))
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(buf)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods, ag
}

// Client is a wrapper for ssh.Client
type Client struct {
	config Config
	opts   Options
	client *ssh.Client
	agent  agent.ExtendedAgent
	logs   *iostream.StdWriters
}

// New dials the host described by cfg after resolving it through DefaultSettings.
func New(cfg Config, opts Options) (*Client, error) {
	config := Resolve(cfg, DefaultSettings)
	methods, ag := authMethods(config)
	if len(methods) == 0 {
		return nil, errors.Errorf("no ssh credentials for %s@%s", config.User, config.Host)
	}
	clientConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         config.Timeout,
	}
	client, err := ssh.Dial("tcp", config.addr(), clientConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", config.addr())
	}
	c := &Client{config: config, opts: opts, client: client}
	if config.ForwardAgent && ag != nil {
		if err := agent.ForwardToAgent(client, ag); err != nil {
			client.Close()
			return nil, errors.Wrap(err, "forward agent")
		}
		c.agent = ag
	}
	if len(opts.LogDir) > 0 {
		c.logs = iostream.NewFileRedirector(filepath.Join(opts.LogDir, c.name()))
	}
	return c, nil
}

func (c *Client) name() string {
	if len(c.opts.Name) > 0 {
		return c.opts.Name
	}
	return c.config.Host
}

func (c *Client) String() string {
	return fmt.Sprintf("%s@%s", c.config.User, c.config.Host)
}

func (c *Client) newSession() (*ssh.Session, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	if c.agent != nil {
		if err := agent.RequestAgentForwarding(session); err != nil {
			session.Close()
			return nil, err
		}
	}
	return session, nil
}

func (c *Client) redirectors(extra ...*iostream.StdWriters) []*iostream.StdWriters {
	ws := extra
	if c.opts.Verbose {
		ws = append(ws, iostream.NewEchoRedirector(c.name(), c.opts.Color))
	}
	if c.logs != nil {
		ws = append(ws, c.logs)
	}
	return ws
}

// start launches cmd and returns a channel that yields its exit error once
// both output streams are drained.
func (c *Client) start(cmd string, outputs *Outputs) (*ssh.Session, <-chan error, error) {
	session, err := c.newSession()
	if err != nil {
		return nil, nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	results := iostream.StdReaders{Stdout: stdout, Stderr: stderr}
	ioDone := results.Stream(c.redirectors(outputs.writers())...)
	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, nil, err
	}
	done := make(chan error, 1)
	go func() {
		ioDone.Wait() // before session.Wait()
		done <- session.Wait()
	}()
	return session, done, nil
}

// Run executes cmd and blocks until it exits or ctx is done.
func (c *Client) Run(ctx context.Context, cmd string) (*Outputs, error) {
	outputs := newOutputs()
	session, done, err := c.start(cmd, outputs)
	if err != nil {
		return outputs, err
	}
	defer session.Close()
	stopped := false
	err = await(ctx, done, func() {
		stopped = true
		terminate(session)
	})
	if stopped {
		return outputs, err
	}
	return outputs, wrapExit(err)
}

func terminate(session *ssh.Session) {
	session.Signal(ssh.SIGTERM)
	session.Close()
}

// Start executes cmd without waiting for it.
func (c *Client) Start(cmd string) (Process, error) {
	outputs := newOutputs()
	session, done, err := c.start(cmd, outputs)
	if err != nil {
		return nil, err
	}
	return &process{session: session, done: done, outputs: outputs}, nil
}

// Fetch copies the remote file at path into w.
func (c *Client) Fetch(ctx context.Context, path string, w io.Writer) error {
	session, err := c.newSession()
	if err != nil {
		return err
	}
	defer session.Close()
	var stderr iostream.Lines
	session.Stdout = w
	session.Stderr = &stderr
	done := make(chan error, 1)
	go func() { done <- session.Run("cat -- " + shellescape.Quote(path)) }()
	stopped := false
	err = await(ctx, done, func() {
		stopped = true
		session.Close()
	})
	switch {
	case stopped:
		return ctx.Err()
	case err != nil:
		return errors.Wrapf(wrapExit(err), "cat %s: %s", path, strings.Join(stderr.Get(), "; "))
	}
	return nil
}

// Close closes the client
func (c *Client) Close() error {
	if c.logs != nil {
		for _, w := range []io.Writer{c.logs.Stdout, c.logs.Stderr} {
			if wc, ok := w.(io.Closer); ok {
				wc.Close()
			}
		}
	}
	return c.client.Close()
}

type process struct {
	sync.Mutex
	session *ssh.Session
	done    <-chan error
	outputs *Outputs
	waited  bool
	err     error
}

func (p *process) Wait(ctx context.Context) error {
	p.Lock()
	defer p.Unlock()
	if p.waited {
		return p.err
	}
	stopped := false
	err := await(ctx, p.done, func() {
		stopped = true
		terminate(p.session)
	})
	if stopped {
		p.err = ctx.Err()
	} else {
		p.err = wrapExit(err)
	}
	p.waited = true
	p.session.Close()
	return p.err
}

func (p *process) Outputs() *Outputs {
	return p.outputs
}
