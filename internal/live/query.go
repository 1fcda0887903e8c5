package live

import (
	"context"
	"log/slog"
)

// Query emits the result of fetch once immediately and again after every
// change to one of tables, until ctx is cancelled. The channel is closed when
// the query stops.
//
// A failed fetch is logged and skipped; the next change retries it. A result
// computed after ctx was cancelled is dropped.
func Query[T any](ctx context.Context, tr *Tracker, fetch func(context.Context) (T, error), tables ...Table) <-chan T {
	out := make(chan T)
	// Subscribe before the first fetch so a write racing with it is not lost.
	changes, unsubscribe := tr.Subscribe(tables...)

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			v, err := fetch(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				slog.ErrorContext(ctx, "Live query fetch failed", "tables", tables, "error", err)
			default:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Just emits v once and keeps the channel open until ctx is cancelled.
func Just[T any](ctx context.Context, v T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		select {
		case out <- v:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}()
	return out
}

// Map applies f to every value of in.
func Map[A, B any](ctx context.Context, in <-chan A, f func(A) B) <-chan B {
	out := make(chan B)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case out <- f(v):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
