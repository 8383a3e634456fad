package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/food-delivery/middlewares"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

var (
	ErrNoPermission  = errors.New("you do not have permission to perform this action")
	ErrMissingActor  = errors.New("user id not found in context")
	ErrInvalidStatus = errors.New("unknown order status")
)

// respondServiceError maps the service error taxonomy onto HTTP. The code field lets
// clients tell a lost claim race (re-poll) from a credential problem (sign in again).
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondErrorCode(c, http.StatusConflict, "invalid_transition", err)
	case errors.Is(err, services.ErrAlreadyClaimed):
		utils.RespondErrorCode(c, http.StatusConflict, "already_claimed", err)
	case errors.Is(err, services.ErrOrderNotClaimable):
		utils.RespondErrorCode(c, http.StatusConflict, "order_not_claimable", err)
	case errors.Is(err, services.ErrConcurrentUpdate):
		utils.RespondErrorCode(c, http.StatusConflict, "concurrent_update", err)
	case errors.Is(err, services.ErrTokenRevoked):
		utils.RespondErrorCode(c, http.StatusUnauthorized, "token_revoked", err)
	case errors.Is(err, services.ErrUnauthorized):
		utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, services.ErrForbidden):
		utils.RespondErrorCode(c, http.StatusForbidden, "forbidden", ErrNoPermission)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondErrorCode(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrInvalidInput):
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, services.ErrStoreUnavailable):
		utils.ErrorLogger.Printf("Store unavailable on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		utils.RespondErrorCode(c, http.StatusServiceUnavailable, "store_unavailable", errors.New("service temporarily unavailable, retry"))
	default:
		utils.ErrorLogger.Printf("Unexpected error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// currentActor reads what AuthMiddleware put in the context.
func currentActor(c *gin.Context) (services.Actor, bool) {
	idVal, ok := c.Get(middlewares.CtxUserID)
	if !ok {
		return services.Actor{}, false
	}
	roleVal, ok := c.Get(middlewares.CtxRole)
	if !ok {
		return services.Actor{}, false
	}
	id, ok := idVal.(uint)
	if !ok {
		return services.Actor{}, false
	}
	role, ok := roleVal.(models.Role)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{UserID: id, Role: role}, true
}

func mustActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := currentActor(c)
	if !ok {
		utils.RespondErrorCode(c, http.StatusUnauthorized, "unauthorized", ErrMissingActor)
	}
	return actor, ok
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return 0, false
	}
	return id, true
}
