// Package outletcontext carries the acting outlet and user through a request.
package outletcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// SystemActor attributes work that has no interactive user behind it.
const SystemActor = "system"

type outletContextKey struct{}

type actorContextKey struct{}

// WithOutletID stores the outlet ID in the context.
func WithOutletID(ctx context.Context, outletID int64) context.Context {
	return context.WithValue(ctx, outletContextKey{}, outletID)
}

// OutletIDFromContext returns the outlet ID from context, if set.
func OutletIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(outletContextKey{}).(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// WithActorID stores the acting user in the context. Blank ids are ignored.
func WithActorID(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorIDFromContext returns the acting user, or SystemActor when none is set.
func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
