// Package cancel provides the cancellation-token primitive the session
// layer hangs every in-flight network operation on. A Token is identity
// comparable: completion handlers check whether the token they were spawned
// with is still the task's current token before applying any state, which is
// what makes superseded and post-removal responses droppable.
package cancel

import "context"

type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewToken(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Context is the context an operation spawned under this token must use for
// its network I/O.
func (t *Token) Context() context.Context {
	if t == nil {
		return context.Background()
	}
	return t.ctx
}

func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
}

func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.ctx.Err() != nil
}

// Spawn pairs an async operation with a fresh token and starts it. The
// operation receives the token's context and must stop doing visible work
// once it is cancelled; cancellation is cooperative, not preemptive.
func Spawn(parent context.Context, op func(ctx context.Context)) *Token {
	t := NewToken(parent)
	go op(t.ctx)
	return t
}
