package services

import (
	"fmt"

	"github.com/yeremiapane/food-delivery/models"
)

// Actor is whoever asks for a state change.
type Actor struct {
	UserID uint
	Role   models.Role
}

type transitionKey struct {
	role models.Role
	from models.OrderStatus
	to   models.OrderStatus
}

// legalTransitions is the complete (role, from, to) table. Anything missing is illegal.
// Adding a status means adding its rows here; TestTransitionTableCrossProduct pins the set.
var legalTransitions = map[transitionKey]struct{}{
	// client: self-service cancellation only while the kitchen has not started
	{models.RoleClient, models.StatusPending, models.StatusCancelled}:   {},
	{models.RoleClient, models.StatusConfirmed, models.StatusCancelled}: {},

	// restaurant operator
	{models.RoleRestaurant, models.StatusPending, models.StatusConfirmed}:    {},
	{models.RoleRestaurant, models.StatusConfirmed, models.StatusPrepared}:   {},
	{models.RoleRestaurant, models.StatusPending, models.StatusCancelled}:    {},
	{models.RoleRestaurant, models.StatusConfirmed, models.StatusCancelled}:  {},
	{models.RoleRestaurant, models.StatusPrepared, models.StatusCancelled}:   {},
	{models.RoleRestaurant, models.StatusDelivering, models.StatusCancelled}: {},

	// delivery partner
	{models.RoleDelivery, models.StatusConfirmed, models.StatusDelivering}: {},
	{models.RoleDelivery, models.StatusPrepared, models.StatusDelivering}:  {},
	{models.RoleDelivery, models.StatusDelivering, models.StatusDelivered}: {},

	// platform admin: every forward edge plus cancellation from any non-terminal state
	{models.RoleAdmin, models.StatusPending, models.StatusConfirmed}:    {},
	{models.RoleAdmin, models.StatusConfirmed, models.StatusPrepared}:   {},
	{models.RoleAdmin, models.StatusConfirmed, models.StatusDelivering}: {},
	{models.RoleAdmin, models.StatusPrepared, models.StatusDelivering}:  {},
	{models.RoleAdmin, models.StatusDelivering, models.StatusDelivered}: {},
	{models.RoleAdmin, models.StatusPending, models.StatusCancelled}:    {},
	{models.RoleAdmin, models.StatusConfirmed, models.StatusCancelled}:  {},
	{models.RoleAdmin, models.StatusPrepared, models.StatusCancelled}:   {},
	{models.RoleAdmin, models.StatusDelivering, models.StatusCancelled}: {},
}

// CanTransition checks the legality table only.
func CanTransition(role models.Role, from, to models.OrderStatus) bool {
	_, ok := legalTransitions[transitionKey{role, from, to}]
	return ok
}

// isParty reports whether a non-admin actor is bound to the order.
func isParty(actor Actor, order *models.Order) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return order.ClientID == actor.UserID
	case models.RoleRestaurant:
		return order.Restaurant.OperatorID == actor.UserID
	case models.RoleDelivery:
		return order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == actor.UserID
	default:
		panic(fmt.Sprintf("unhandled role %q", actor.Role))
	}
}

// authorizeTransition runs every check that must pass before the conditional write.
func authorizeTransition(order *models.Order, actor Actor, to models.OrderStatus) error {
	if _, ok := models.ParseRole(string(actor.Role)); !ok {
		return ErrForbidden
	}
	if !isParty(actor, order) {
		return fmt.Errorf("%w: actor %d is not a party to order %d", ErrInvalidTransition, actor.UserID, order.ID)
	}
	if !CanTransition(actor.Role, order.Status, to) {
		return fmt.Errorf("%w: %s cannot move order from %s to %s", ErrInvalidTransition, actor.Role, order.Status, to)
	}
	// Delivering and Delivered require an assigned partner.
	if (to == models.StatusDelivering || to == models.StatusDelivered) && order.DeliveryPartnerID == nil {
		return fmt.Errorf("%w: order %d has no delivery partner", ErrInvalidTransition, order.ID)
	}
	return nil
}
