package ssh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSettings map[string]map[string]string

func (s fakeSettings) Get(alias, key string) string {
	return s[alias][key]
}

func Test_Resolve(t *testing.T) {
	settings := fakeSettings{
		"node-0": {
			"HostName":     "10.0.0.1",
			"User":         "nwtnni",
			"Port":         "2222",
			"IdentityFile": "~/.ssh/cluster",
		},
	}
	c := Resolve(Config{Host: "node-0"}, settings)
	assert.Equal(t, "10.0.0.1", c.Host)
	assert.Equal(t, "nwtnni", c.User)
	assert.Equal(t, 2222, c.Port)
	assert.Equal(t, []string{"~/.ssh/cluster"}, c.KeyFiles)
	assert.Equal(t, defaultTimeout, c.Timeout)
	assert.Equal(t, "10.0.0.1:2222", c.addr())
}

func Test_Resolve_ExplicitWins(t *testing.T) {
	settings := fakeSettings{"node-1": {"User": "other", "Port": "2222"}}
	c := Resolve(Config{Host: "node-1", User: "alice", Port: 22, Timeout: time.Second}, settings)
	assert.Equal(t, "node-1", c.Host)
	assert.Equal(t, "alice", c.User)
	assert.Equal(t, 22, c.Port)
	assert.Equal(t, time.Second, c.Timeout)
	assert.Len(t, c.KeyFiles, 2)
}

func Test_ExitStatus(t *testing.T) {
	n, ok := ExitStatus(&ExitError{Status: 3})
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ExitStatus(errors.New("dial tcp: timeout"))
	assert.False(t, ok)
}

func Test_NewOutputs(t *testing.T) {
	o := NewOutputs([]string{"a", "b"}, nil)
	assert.Equal(t, []string{"a", "b"}, o.Stdout())
	assert.Empty(t, o.Stderr())

	var nilOutputs *Outputs
	assert.Nil(t, nilOutputs.Stdout())
}

func Test_await_PrefersExitOverExpiredContext(t *testing.T) {
	exit := &ExitError{Status: 0}
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		done := make(chan error, 1)
		done <- exit
		stops := 0
		err := await(ctx, done, func() { stops++ })
		if err != exit || stops != 0 {
			t.Fatalf("want %v without stop, got %v after %d stops", exit, err, stops)
		}
	}
}

func Test_await_DrainsAfterStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	var writing int32 = 1
	stop := func() {
		go func() {
			time.Sleep(20 * time.Millisecond)
			atomic.StoreInt32(&writing, 0)
			done <- errors.New("session closed")
		}()
	}
	err := await(ctx, done, stop)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&writing), "returned while the session was still writing")
}
