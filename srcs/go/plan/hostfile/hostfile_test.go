package hostfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse(t *testing.T) {
	text := `
	# cloudlab nodes
	nwtnni@node-0.example.net # leader
	node-1.example.net:2222

	root@10.0.0.3
	`
	hl, err := Parse(text, "alice")
	require.NoError(t, err)
	require.Len(t, hl, 3)

	assert.Equal(t, Host{Index: 0, User: "nwtnni", Addr: "node-0.example.net"}, hl[0])
	assert.Equal(t, Host{Index: 1, User: "alice", Addr: "node-1.example.net", Port: 2222}, hl[1])
	assert.Equal(t, Host{Index: 2, User: "root", Addr: "10.0.0.3"}, hl[2])
	assert.Equal(t, []string{"node-0.example.net", "node-1.example.net", "10.0.0.3"}, hl.Addrs())
	assert.Equal(t, "alice@node-1.example.net:2222", hl[1].String())
}

func Test_Parse_Invalid(t *testing.T) {
	for _, text := range []string{
		"",
		"# only comments\n",
		"a b",
		"@host",
		"host:http",
		"user@",
	} {
		_, err := Parse(text, "")
		assert.Error(t, err, "%q", text)
	}
}
