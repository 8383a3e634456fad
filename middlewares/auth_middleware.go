package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

// Context keys set by AuthMiddleware.
const (
	CtxUserID    = "userID"
	CtxRole      = "role"
	CtxTokenID   = "tokenID"
	CtxExpiresAt = "tokenExpiresAt"
)

// AuthMiddleware accepts only the caller's current, unrevoked session token.
// The credential store is consulted on every request.
func AuthMiddleware(auth *services.SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", errors.New("Authorization header missing"))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenRevoked):
				utils.RespondErrorCode(c, http.StatusUnauthorized, "token_revoked", errors.New("session has been revoked, please sign in again"))
			case errors.Is(err, services.ErrStoreUnavailable):
				utils.ErrorLogger.WithFields(logrus.Fields{"path": c.Request.URL.Path}).Errorf("session check failed: %v", err)
				utils.RespondErrorCode(c, http.StatusServiceUnavailable, "store_unavailable", errors.New("session store unavailable, retry"))
			default:
				utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", errors.New("Invalid or expired token"))
			}
			c.Abort()
			return
		}

		role, ok := models.ParseRole(claims.Role)
		if !ok {
			utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", errors.New("Invalid role in token"))
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, role)
		c.Set(CtxTokenID, claims.TokenID())
		c.Set(CtxExpiresAt, claims.ExpiresAt.Time)

		c.Next()
	}
}
