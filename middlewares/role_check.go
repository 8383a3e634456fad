package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

// RequireRoles lets the request through when the authenticated role is one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(CtxRole)
		if !exists {
			utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		for _, r := range roles {
			if userRole == r {
				c.Next()
				return
			}
		}

		utils.RespondErrorCode(c, http.StatusForbidden, "forbidden", fmt.Errorf("%s access required", roles[0]))
		c.Abort()
	}
}
