package middleware

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Middleware allows wrapping a FormStore to add behavior.
type Middleware func(ports.FormStore) ports.FormStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.FormStore, mws ...Middleware) ports.FormStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// watch forwards to the wrapped store when it can stream changes.
func watch(ctx context.Context, next ports.FormStore) (<-chan domain.ChangeEvent, error) {
	w, ok := next.(ports.Watchable)
	if !ok {
		return nil, domain.ErrWatchUnsupported
	}
	return w.Watch(ctx)
}
