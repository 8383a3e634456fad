package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

// RestaurantController covers just enough of restaurant management for checkout to have
// something to order from.
type RestaurantController struct {
	DB *gorm.DB
}

func NewRestaurantController(db *gorm.DB) *RestaurantController {
	return &RestaurantController{DB: db}
}

// CreateRestaurant -> the calling operator owns the new restaurant
func (rc *RestaurantController) CreateRestaurant(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}

	restaurant := models.Restaurant{Name: body.Name, OperatorID: actor.UserID}
	if err := rc.DB.WithContext(c.Request.Context()).Create(&restaurant).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Restaurant created", restaurant)
}

func (rc *RestaurantController) GetMenus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var menus []models.Menu
	if err := rc.DB.WithContext(c.Request.Context()).Where("restaurant_id = ?", id).Order("id ASC").Find(&menus).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menus", menus)
}

// CreateMenu -> only the restaurant's operator may add items
func (rc *RestaurantController) CreateMenu(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var restaurant models.Restaurant
	if err := rc.DB.WithContext(c.Request.Context()).First(&restaurant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondErrorCode(c, http.StatusNotFound, "not_found", errors.New("restaurant not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if restaurant.OperatorID != actor.UserID && actor.Role != models.RoleAdmin {
		utils.RespondErrorCode(c, http.StatusForbidden, "forbidden", ErrNoPermission)
		return
	}

	var body struct {
		Name      string  `json:"name" binding:"required"`
		Price     float64 `json:"price" binding:"required,gt=0"`
		Available *bool   `json:"available"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}

	menu := models.Menu{
		RestaurantID: restaurant.ID,
		Name:         body.Name,
		Price:        body.Price,
		Available:    body.Available == nil || *body.Available,
	}
	if err := rc.DB.WithContext(c.Request.Context()).Create(&menu).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Menu created", menu)
}
