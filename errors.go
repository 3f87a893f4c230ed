package tagcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKey  = errors.New("tagcache: key must not be empty")
	ErrInvalidTag  = errors.New("tagcache: tag set must be non-empty and tags non-blank")
	ErrUnsupported = errors.New("tagcache: operation not supported by provider")
	ErrNilCompute  = errors.New("tagcache: compute function is nil")
)

// FlushFailure is one step of a tag flush that did not complete.
// Key is the member storage key, or the index key when reading or removing
// the index itself failed.
type FlushFailure struct {
	Tag string
	Key string
	Err error
}

// FlushError reports a partially completed Flush. Tags whose members could
// not all be deleted keep their index so a retry can finish the job.
type FlushError struct {
	Failures []FlushFailure
}

func (e *FlushError) Error() string {
	switch len(e.Failures) {
	case 0:
		return "flush: unknown error"
	case 1:
		f := e.Failures[0]
		return fmt.Sprintf("flush tag %q: %q: %v", f.Tag, f.Key, f.Err)
	default:
		tags := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			if len(tags) == 0 || tags[len(tags)-1] != f.Tag {
				tags = append(tags, f.Tag)
			}
		}
		return fmt.Sprintf("flush: %d failures across tags [%s]; first: %v",
			len(e.Failures), strings.Join(tags, ","), e.Failures[0].Err)
	}
}

func (e *FlushError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func (e *FlushError) add(tag, key string, err error) {
	e.Failures = append(e.Failures, FlushFailure{Tag: tag, Key: key, Err: err})
}

func (e *FlushError) orNil() error {
	if e == nil || len(e.Failures) == 0 {
		return nil
	}
	return e
}
