// Package progress carries human-readable ingestion milestones to whoever is
// listening for the caller.
//
// Delivery is narrower than a process-wide broadcast: messages are scoped
// to the owner that started the ingestion. Every listener subscribed for
// that owner receives them and listeners of other owners never do.
//
// Delivery is fire-and-forget and at-most-once. A listener that connects
// after a message was emitted never sees it.
package progress

import (
	"context"
	"fmt"
)

// Emitter publishes one progress message for the owner carried in ctx.
type Emitter interface {
	Emit(ctx context.Context, msg string)
}

// Source hands out per-owner message streams. The returned cancel func
// must be called to release the subscription.
type Source interface {
	Subscribe(owner string) (<-chan string, func(), error)
}

type ownerKey struct{}

// WithOwner returns a context whose emissions are addressed to owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the owner set by WithOwner, or "".
func Owner(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}

// Emitf formats and emits.
func Emitf(ctx context.Context, e Emitter, format string, args ...any) {
	if e == nil {
		return
	}
	e.Emit(ctx, fmt.Sprintf(format, args...))
}

// Nop discards everything.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(context.Context, string) {}

// Multi fans one message out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, msg string) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, msg)
		}
	}
}
