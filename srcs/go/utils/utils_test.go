package utils

import (
	"errors"
	"testing"
	"time"
)

func Test_MergeErrors(t *testing.T) {
	if err := MergeErrors([]error{nil, nil}, "fetch"); err != nil {
		t.Errorf("want nil, got %v", err)
	}
	err := MergeErrors([]error{errors.New("a"), nil, errors.New("b")}, "fetch")
	const want = `fetch failed with 2 errors: a, b`
	if err == nil || err.Error() != want {
		t.Errorf("want %q, got %v", want, err)
	}
}

func Test_Pluralize(t *testing.T) {
	for _, tc := range []struct {
		n    int
		want string
	}{
		{0, "0 hosts"},
		{1, "1 host"},
		{3, "3 hosts"},
	} {
		if got := Pluralize(tc.n, "host", "hosts"); got != tc.want {
			t.Errorf("want %q, got %q", tc.want, got)
		}
	}
}

func Test_Measure(t *testing.T) {
	d, err := Measure(func() error {
		time.Sleep(time.Millisecond)
		return nil
	})
	if err != nil || d < time.Millisecond {
		t.Errorf("unexpected %s %v", d, err)
	}
}
