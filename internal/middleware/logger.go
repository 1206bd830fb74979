package middleware

import (
	"log/slog"

	"github.com/roach88/reflux/internal/store"
)

// Logger logs one line per dispatch that reaches it: the action, the state
// before and after the rest of the chain ran, and whether the reducer ran.
//
// Place it first to see every action, including ones later middleware drops.
func Logger[S any](logger *slog.Logger) store.Middleware[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(api store.API[S], action store.Action, next store.Next) {
		prev := api.State()
		version := api.Version()

		next(action)

		logger.Info("dispatch",
			"action", store.TypeOf(action),
			"prev", prev,
			"next", api.State(),
			"applied", api.Version() != version,
			"depth", api.Depth())
	}
}
