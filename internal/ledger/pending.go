package ledger

import "context"

// Pending is the completion handle of an enqueued write.
type Pending struct {
	done chan struct{}
	id   int64
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(id int64, err error) {
	p.id, p.err = id, err
	close(p.done)
}

// Done is closed once the write has been applied or has failed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the write completes and returns the id of the affected
// record. Cancelling ctx stops the wait, not the write.
func (p *Pending) Wait(ctx context.Context) (int64, error) {
	select {
	case <-p.done:
		return p.id, p.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
