// Package panicerr converts panics into cerr Internal errors so one failing
// refresh cannot take down a worker pool.
package panicerr

import (
	"context"

	"github.com/sourcegraph/conc/panics"

	"github.com/kazz187/appperms/pkg/cerr"
)

// Run calls fn and returns a recovered panic as an error.
func Run(fn func()) error {
	var catcher panics.Catcher
	catcher.Try(fn)
	if r := catcher.Recovered(); r != nil {
		return cerr.NewError(cerr.Internal, "server error", r.AsError())
	}
	return nil
}

// Safe wraps a function that returns an error, catching any panics and returning them as an error.
func Safe(fn func() error) func() error {
	return func() error {
		var err error
		if perr := Run(func() { err = fn() }); perr != nil {
			return perr
		}
		return err
	}
}

// SafeContext wraps a function that takes a context and returns an error.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Safe(func() error { return fn(ctx) })()
	}
}
