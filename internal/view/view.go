// Package view holds the per-screen state of the staff client. Each view is bound to a
// lifetime: Close cancels whatever it still has in flight, and results that arrive after
// Close never touch its state.
package view

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed             = errors.New("view closed")
	ErrNoSnapshotSelected = errors.New("no inventory snapshot selected")
	ErrNoCapitalSelected  = errors.New("no petty-cash capital selected")
	ErrNotEditing         = errors.New("no row is being edited")
)

// lifetime is embedded by every view. mu also guards the embedding view's state.
type lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (l *lifetime) init(parent context.Context) {
	l.ctx, l.cancel = context.WithCancel(parent)
}

// Close ends the view. It is safe to call more than once.
func (l *lifetime) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
}

func (l *lifetime) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *lifetime) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

// commit applies a finished call's result under the lock, or drops it if the view has
// closed in the meantime.
func (l *lifetime) commit(err error, apply func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.ctx.Err() != nil {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	apply()
	return nil
}

// rowEdit is a buffered edit of one row. The original is kept for rollback.
type rowEdit[T any] struct {
	id       int64
	original T
	buffer   T
}
