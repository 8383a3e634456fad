package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

type AdminController struct {
	DB    *gorm.DB
	Store services.CredentialStore
}

func NewAdminController(db *gorm.DB, store services.CredentialStore) *AdminController {
	return &AdminController{DB: db, Store: store}
}

// CreateUser -> admins can create any role, including other admins
func (ac *AdminController) CreateUser(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", errors.New("unknown role"))
		return
	}

	user, err := createUser(ac.DB, req.Name, req.Email, req.Password, role)
	if err != nil {
		respondCreateUserError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "User created", user)
}

func (ac *AdminController) ListUsers(c *gin.Context) {
	var users []models.User
	q := ac.DB.WithContext(c.Request.Context()).Order("id ASC")
	if r := c.Query("role"); r != "" {
		role, ok := models.ParseRole(r)
		if !ok {
			utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", errors.New("unknown role"))
			return
		}
		q = q.Where("role = ?", role)
	}
	if err := q.Find(&users).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of users", users)
}

// RevokeSessions -> signs the user out everywhere and closes their live channels
func (ac *AdminController) RevokeSessions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var user models.User
	if err := ac.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondServiceError(c, services.ErrNotFound)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if err := ac.Store.RevokeUser(c.Request.Context(), user.ID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.Printf("Sessions of user %d revoked by admin", user.ID)
	utils.RespondJSON(c, http.StatusOK, "Sessions revoked", gin.H{"user_id": user.ID})
}

// GetOrderStats -> order counts per status
func (ac *AdminController) GetOrderStats(c *gin.Context) {
	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	err := ac.DB.WithContext(c.Request.Context()).Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	stats := make(map[models.OrderStatus]int64, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		stats[s] = 0
	}
	for _, r := range rows {
		stats[r.Status] = r.Count
	}
	utils.RespondJSON(c, http.StatusOK, "Order stats", stats)
}
