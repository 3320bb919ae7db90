package result

import "context"

// Future is an in-flight computation that resolves to a Result plus a
// fatal error channel for request failures. Futures resolve exactly once;
// combinators chain without awaiting. A Future whose outcome is never
// observed is a defect in the caller.
type Future[T, E any] struct {
	done chan struct{}
	res  Result[T, E]
	err  error
}

// Go starts fn on its own goroutine and returns the Future resolving to
// its outcome.
func Go[T, E any](fn func() (Result[T, E], error)) *Future[T, E] {
	f := &Future[T, E]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.res, f.err = fn()
	}()
	return f
}

// Resolved returns an already-settled Future.
func Resolved[T, E any](r Result[T, E], err error) *Future[T, E] {
	f := &Future[T, E]{done: make(chan struct{}), res: r, err: err}
	close(f.done)
	return f
}

// Done is closed once the Future has settled.
func (f *Future[T, E]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future settles or ctx is cancelled. On
// cancellation the underlying computation keeps running and its outcome is
// indeterminate from the caller's perspective.
func (f *Future[T, E]) Await(ctx context.Context) (Result[T, E], error) {
	select {
	case <-ctx.Done():
		var zero Result[T, E]
		return zero, ctx.Err()
	case <-f.done:
		return f.res, f.err
	}
}

// MapFut transforms the success side once the Future settles.
func MapFut[T, U, E any](f *Future[T, E], fn func(T) U) *Future[U, E] {
	return Go(func() (Result[U, E], error) {
		<-f.done
		if f.err != nil {
			var zero Result[U, E]
			return zero, f.err
		}
		return Map(f.res, fn), nil
	})
}

// MapErrFut transforms the failure side once the Future settles.
func MapErrFut[T, E, F any](f *Future[T, E], fn func(E) F) *Future[T, F] {
	return Go(func() (Result[T, F], error) {
		<-f.done
		if f.err != nil {
			var zero Result[T, F]
			return zero, f.err
		}
		return MapErr(f.res, fn), nil
	})
}

// AndThenFut chains a synchronous fallible transformation.
func AndThenFut[T, U, E any](f *Future[T, E], fn func(T) Result[U, E]) *Future[U, E] {
	return Go(func() (Result[U, E], error) {
		<-f.done
		if f.err != nil {
			var zero Result[U, E]
			return zero, f.err
		}
		return AndThen(f.res, fn), nil
	})
}

// ThenFut chains an asynchronous continuation, flattening the inner
// Future. The continuation only runs on the success side.
func ThenFut[T, U, E any](f *Future[T, E], fn func(T) *Future[U, E]) *Future[U, E] {
	return Go(func() (Result[U, E], error) {
		<-f.done
		if f.err != nil {
			var zero Result[U, E]
			return zero, f.err
		}
		v, ok := f.res.Value()
		if !ok {
			e, _ := f.res.ErrValue()
			return Err[U, E](e), nil
		}
		inner := fn(v)
		<-inner.done
		return inner.res, inner.err
	})
}

// InspectFut runs a side effect on the success side once settled and
// passes the Future's outcome through.
func InspectFut[T, E any](f *Future[T, E], fn func(T)) *Future[T, E] {
	return Go(func() (Result[T, E], error) {
		<-f.done
		if f.err != nil {
			var zero Result[T, E]
			return zero, f.err
		}
		return f.res.Inspect(fn), nil
	})
}
