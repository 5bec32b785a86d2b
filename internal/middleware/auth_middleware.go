package middleware

import (
	"strings"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"

	"github.com/gin-gonic/gin"
)

const LinkClaimsKey = "link_claims"

// TrackingLink reads a signed tracking link from the access query parameter
// or a Bearer header. Requests without one pass through; a link that fails
// validation is rejected.
func TrackingLink(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("access")
		if raw == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				raw = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if raw == "" {
			c.Next()
			return
		}

		if secret == "" {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		claims, err := utils.ValidateLinkToken(raw, secret)
		if err != nil {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}

		c.Set(LinkClaimsKey, claims)
		c.Next()
	}
}

// GetLinkClaims returns the link attached by TrackingLink, if any.
func GetLinkClaims(c *gin.Context) (*utils.LinkClaims, bool) {
	v, ok := c.Get(LinkClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.LinkClaims)
	return claims, ok
}

// LinkGrants reports whether the request carries a link for token and role.
func LinkGrants(c *gin.Context, token string, role models.Role) bool {
	claims, ok := GetLinkClaims(c)
	return ok && claims.TripToken == token && models.Role(claims.Role) == role
}
