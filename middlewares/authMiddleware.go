package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/fxcard_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware accepts a bank SSO identity token as an alternative to the
// portal session token. The bearer claims carry username, display name and
// role the same way /auth/exchange consumes them.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.Next()
			return
		}

		claims, err := utils.JwtValidate(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUsernameInContext(c.Request.Context(), claims.Username)
		ctx = utils.SetUserNameInContext(ctx, claims.Name)
		ctx = utils.SetUserRoleInContext(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
