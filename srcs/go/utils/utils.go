package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

func ProgName() string {
	return filepath.Base(os.Args[0])
}

func LogArgs() {
	for i, a := range os.Args {
		fmt.Printf("[arg] [%d]=%s\n", i, a)
	}
}

func LogEnvWithPrefix(prefix string, logPrefix string) {
	var envs []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			envs = append(envs, kv)
		}
	}
	sort.Strings(envs)
	for _, kv := range envs {
		fmt.Printf("[%s]: %s\n", logPrefix, kv)
	}
}

func LogConfigEnv() {
	LogEnvWithPrefix(`COLLSWEEP_`, `env`)
}

func ExitErr(err error) {
	pc, fn, line, _ := runtime.Caller(1)
	loc := fmt.Sprintf("%v:%s:%d", pc, fn, line)
	fmt.Printf("exit on error: %v at %s\n", err, loc)
	os.Exit(1)
}

func Measure(f func() error) (time.Duration, error) {
	t0 := time.Now()
	err := f()
	d := time.Since(t0)
	return d, err
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func Pluralize(n int, singular, plural string) string {
	return fmt.Sprintf("%d %s", n, pluralize(n, singular, plural))
}
