package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder -> checkout, order starts as pending
func (oc *OrderController) CreateOrder(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var body services.CheckoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}

	order, err := oc.Orders.Checkout(c.Request.Context(), actor.UserID, body)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrders -> orders visible to the caller
func (oc *OrderController) GetOrders(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	orders, err := oc.Orders.ListOrders(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// GetAvailableOrders -> unassigned orders a delivery partner can claim
func (oc *OrderController) GetAvailableOrders(c *gin.Context) {
	orders, err := oc.Orders.AvailableOrders(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available orders", orders)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := oc.Orders.GetOrder(c.Request.Context(), id, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// GetOrderHistory -> applied transitions and claims, oldest first
func (oc *OrderController) GetOrderHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if _, err := oc.Orders.GetOrder(c.Request.Context(), id, actor); err != nil {
		respondServiceError(c, err)
		return
	}
	logs, err := oc.Orders.StatusHistory(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order history", logs)
}

// UpdateOrderStatus -> PUT /orders/:id/status {"status": "..."}
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	status, valid := models.ParseOrderStatus(body.Status)
	if !valid {
		utils.RespondErrorCode(c, http.StatusBadRequest, "invalid_input", fmt.Errorf("%w: %q", ErrInvalidStatus, body.Status))
		return
	}

	order, err := oc.Orders.Transition(c.Request.Context(), id, actor, status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// AssignOrder -> POST /orders/:id/assign, the caller claims the delivery
func (oc *OrderController) AssignOrder(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := oc.Orders.Claim(c.Request.Context(), id, actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order assigned", order)
}
