package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	WarmupEnvKey          = `COLLSWEEP_WARMUP`
	MonitorDurationEnvKey = `COLLSWEEP_MONITOR_DURATION`
	MonitorIntervalEnvKey = `COLLSWEEP_MONITOR_INTERVAL`
	JoinGraceEnvKey       = `COLLSWEEP_JOIN_GRACE`
	OpalPrefixEnvKey      = `COLLSWEEP_OPAL_PREFIX`
	LogLevelEnvKey        = `COLLSWEEP_LOG_LEVEL`
	UseSudoEnvKey         = `COLLSWEEP_USE_SUDO`
	TimeoutEnvKey         = `COLLSWEEP_WORKLOAD_TIMEOUT`
)

var ConfigEnvKeys = []string{
	WarmupEnvKey,
	MonitorDurationEnvKey,
	MonitorIntervalEnvKey,
	JoinGraceEnvKey,
	OpalPrefixEnvKey,
	LogLevelEnvKey,
	UseSudoEnvKey,
	TimeoutEnvKey,
}

const (
	DefaultWarmup          = 5 * time.Second
	DefaultMonitorDuration = 120 * time.Second
	DefaultMonitorInterval = 100 * time.Millisecond
	DefaultJoinGrace       = 30 * time.Second
	DefaultOpalPrefix      = `/users/nwtnni/openmpi-v5.0.x-install`
)

// Config holds the timing knobs of a sweep iteration.
type Config struct {
	// Warmup separates monitor start from the workload launch.
	Warmup time.Duration
	// MonitorDuration bounds every monitoring agent's sampling session.
	MonitorDuration time.Duration
	MonitorInterval time.Duration
	// JoinGrace is added to MonitorDuration when joining agents.
	JoinGrace time.Duration
	// Timeout caps the leader's workload; zero means twice MonitorDuration.
	Timeout    time.Duration
	OpalPrefix string
	UseSudo    bool
}

func Default() Config {
	return Config{
		Warmup:          DefaultWarmup,
		MonitorDuration: DefaultMonitorDuration,
		MonitorInterval: DefaultMonitorInterval,
		JoinGrace:       DefaultJoinGrace,
		OpalPrefix:      DefaultOpalPrefix,
		UseSudo:         true,
	}
}

// WorkloadTimeout is the ceiling for the leader's workload command.
func (c Config) WorkloadTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 2 * c.MonitorDuration
}

func (c Config) Validate() error {
	if c.Warmup < 0 {
		return fmt.Errorf("negative warmup: %s", c.Warmup)
	}
	if c.MonitorDuration <= 0 {
		return fmt.Errorf("monitor duration must be positive, got %s", c.MonitorDuration)
	}
	if c.MonitorInterval <= 0 || c.MonitorInterval > c.MonitorDuration {
		return fmt.Errorf("monitor interval %s out of range (0, %s]", c.MonitorInterval, c.MonitorDuration)
	}
	if c.JoinGrace < 0 {
		return fmt.Errorf("negative join grace: %s", c.JoinGrace)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative workload timeout: %s", c.Timeout)
	}
	return nil
}

// FromEnv overlays the COLLSWEEP_* variables onto Default.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	durations := []struct {
		key string
		ptr *time.Duration
	}{
		{WarmupEnvKey, &c.Warmup},
		{MonitorDurationEnvKey, &c.MonitorDuration},
		{MonitorIntervalEnvKey, &c.MonitorInterval},
		{JoinGraceEnvKey, &c.JoinGrace},
		{TimeoutEnvKey, &c.Timeout},
	}
	for _, d := range durations {
		if val, ok := lookup(d.key); ok && len(val) > 0 {
			v, err := time.ParseDuration(val)
			if err != nil {
				return c, fmt.Errorf("%s: %v", d.key, err)
			}
			*d.ptr = v
		}
	}
	if val, ok := lookup(OpalPrefixEnvKey); ok && len(val) > 0 {
		c.OpalPrefix = val
	}
	if val, ok := lookup(UseSudoEnvKey); ok && len(val) > 0 {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return c, fmt.Errorf("%s: %v", UseSudoEnvKey, err)
		}
		c.UseSudo = b
	}
	return c, c.Validate()
}
