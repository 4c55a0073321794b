// Package download collapses concurrent fetches of the same uncached content
// into a single upstream call.
package download

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Func fetches a value from upstream. The context it receives is detached from
// any single caller so that one caller giving up does not cancel the fetch for
// the others waiting on it.
type Func[T any] func(ctx context.Context) (T, error)

// Downloader deduplicates concurrent fetches by key. It uses DoChan so each
// caller can respect its own context deadline.
type Downloader[T any] struct {
	group  singleflight.Group
	logger *slog.Logger
}

// Option configures a Downloader.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the downloader.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Downloader for values of type T.
func New[T any](opts ...Option) *Downloader[T] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Downloader[T]{logger: o.logger}
}

// Do runs fn once for all concurrent callers with the same key. It returns the
// value, whether it was shared with another caller, and any error.
//
// If ctx expires first, Do returns the context error while the fetch keeps
// running for the remaining waiters. A failed fetch is forgotten so the next
// caller retries.
func (d *Downloader[T]) Do(ctx context.Context, key string, fn Func[T]) (T, bool, error) {
	ch := d.group.DoChan(key, func() (any, error) {
		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return v, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			d.forgetOnError(key, res.Err)
			return zero, res.Shared, res.Err
		}
		v, _ := res.Val.(T)
		return v, res.Shared, nil
	case <-ctx.Done():
		d.logger.Debug("caller gave up waiting for fetch", "key", key, "error", ctx.Err())
		return zero, false, ctx.Err()
	}
}

// Forget drops the in-flight entry for key so the next caller starts a new
// fetch.
func (d *Downloader[T]) Forget(key string) {
	d.group.Forget(key)
}

// forgetOnError forgets key after a real upstream failure. Context errors
// belong to one caller and leave the shared fetch alone.
func (d *Downloader[T]) forgetOnError(key string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	d.Forget(key)
}
