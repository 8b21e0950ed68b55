package gc

import "strings"

// errList accumulates non-fatal errors across a GC run so the driver can
// report a combined count at the end (Sweeper.Sweep stops at the first
// failing pack, so a sweep adds at most one), per the run-level accumulator the error-handling design
// calls for. Hand-rolled rather than pulled from go.uber.org/multierr: the
// accumulator here only ever needs Add and a count/Error at the end, and
// nothing else in this module imports an error-aggregation library.
type errList struct {
	errs []error
}

func (l *errList) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

func (l *errList) Len() int { return len(l.errs) }

func (l *errList) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return l
}

func (l *errList) Error() string {
	parts := make([]string, len(l.errs))
	for i, err := range l.errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
