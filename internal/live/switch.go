package live

import "context"

type tagged[T any] struct {
	gen uint64
	v   T
}

// Switch subscribes to inner(key) for the latest key received from outer.
//
// When outer delivers a key different from the current one, the running
// inner subscription is cancelled and a new one is started under the next
// generation. Inner values are tagged with the generation that produced them
// and anything tagged with an older generation is dropped, so nothing from an
// abandoned subscription reaches the output once a newer one has started.
// Repeating the current key does not resubscribe.
//
// If outer closes, the last inner subscription keeps running until ctx is
// cancelled.
func Switch[K comparable, T any](ctx context.Context, outer <-chan K, inner func(context.Context, K) <-chan T) <-chan T {
	out := make(chan T)
	merged := make(chan tagged[T])

	go func() {
		defer close(out)

		var (
			gen         uint64
			current     K
			started     bool
			cancelInner context.CancelFunc = func() {}
		)
		defer func() { cancelInner() }()

		for {
			select {
			case <-ctx.Done():
				return

			case key, ok := <-outer:
				if !ok {
					outer = nil
					continue
				}
				if started && key == current {
					continue
				}
				cancelInner()
				gen++
				current, started = key, true

				innerCtx, cancel := context.WithCancel(ctx)
				cancelInner = cancel
				go forward(innerCtx, gen, inner(innerCtx, key), merged)

			case t := <-merged:
				if t.gen != gen {
					continue
				}
				select {
				case out <- t.v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func forward[T any](ctx context.Context, gen uint64, in <-chan T, merged chan<- tagged[T]) {
	for {
		select {
		case v, ok := <-in:
			if !ok {
				return
			}
			select {
			case merged <- tagged[T]{gen: gen, v: v}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
