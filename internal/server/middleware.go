package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
)

const (
	HeaderActor  = "X-Actor-ID"
	HeaderOutlet = "X-Outlet-ID"

	maxActorLength = 128
)

// Identity copies the acting user and outlet headers into the request
// context. Requests without an actor are attributed to the system.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		actor := strings.TrimSpace(c.GetHeader(HeaderActor))
		if len(actor) > maxActorLength {
			AbortWithError(c, newValidationError("actor", "invalid_actor", "actor id is too long"))
			return
		}
		ctx = outletcontext.WithActorID(ctx, actor)

		if raw := strings.TrimSpace(c.GetHeader(HeaderOutlet)); raw != "" {
			outletID, err := snowflake.ParseString(raw)
			if err != nil || outletID <= 0 {
				AbortWithError(c, newValidationError("outlet", "invalid_outlet", "invalid outlet id"))
				return
			}
			ctx = outletcontext.WithOutletID(ctx, outletID.Int64())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
