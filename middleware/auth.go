package middleware

import (
	"cognichat/utils"

	"github.com/gin-gonic/gin"
)

// RequireAdmin accepts requests carrying a valid admin bearer token signed
// with secret. With an empty secret the admin routes are closed.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			utils.RespondWithForbidden(c, "Admin access is disabled")
			c.Abort()
			return
		}

		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenString, secret)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}
		if claims.Role != utils.RoleAdmin {
			utils.RespondWithForbidden(c, "Admin role required")
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}

// GetClaims returns the token claims set by RequireAdmin.
func GetClaims(c *gin.Context) *utils.Claims {
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}
