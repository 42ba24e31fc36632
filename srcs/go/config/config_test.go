package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func Test_Default(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 5*time.Second, c.Warmup)
	assert.Equal(t, 240*time.Second, c.WorkloadTimeout())
}

func Test_fromLookup(t *testing.T) {
	c, err := fromLookup(lookupFrom(map[string]string{
		WarmupEnvKey:          `1s`,
		MonitorDurationEnvKey: `15s`,
		MonitorIntervalEnvKey: `20ms`,
		OpalPrefixEnvKey:      `/opt/ompi`,
		UseSudoEnvKey:         `false`,
	}))
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.Warmup)
	assert.Equal(t, 15*time.Second, c.MonitorDuration)
	assert.Equal(t, 20*time.Millisecond, c.MonitorInterval)
	assert.Equal(t, DefaultJoinGrace, c.JoinGrace)
	assert.Equal(t, `/opt/ompi`, c.OpalPrefix)
	assert.False(t, c.UseSudo)
	assert.Equal(t, 30*time.Second, c.WorkloadTimeout())

	c, err = fromLookup(lookupFrom(map[string]string{TimeoutEnvKey: `5m`}))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, c.WorkloadTimeout())
}

func Test_fromLookup_Invalid(t *testing.T) {
	for _, env := range []map[string]string{
		{WarmupEnvKey: `soon`},
		{UseSudoEnvKey: `maybe`},
		{MonitorIntervalEnvKey: `10m`},
		{MonitorDurationEnvKey: `0s`},
		{TimeoutEnvKey: `-1s`},
	} {
		_, err := fromLookup(lookupFrom(env))
		assert.Error(t, err, "%v", env)
	}
}
