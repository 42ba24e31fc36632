package utils

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// MergeErrors drops nils; it returns nil when no error is left.
func MergeErrors(errs []error, hint string) error {
	var merged *multierror.Error
	for _, e := range errs {
		if e != nil {
			merged = multierror.Append(merged, e)
		}
	}
	if merged == nil {
		return nil
	}
	merged.ErrorFormat = func(es []error) string {
		msg := fmt.Sprintf("%s failed with %s", hint, Pluralize(len(es), "error", "errors"))
		for i, e := range es {
			sep := ", "
			if i == 0 {
				sep = ": "
			}
			msg += sep + e.Error()
		}
		return msg
	}
	return merged
}
