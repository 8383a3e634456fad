package services

import "errors"

var (
	// ErrInvalidTransition: the (role, from, to) triple is not in the legality table,
	// or the actor is not a party to the order.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyClaimed    = errors.New("order already claimed by another delivery partner")
	ErrOrderNotClaimable = errors.New("order is not claimable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrConcurrentUpdate is returned when a conditional write kept losing to concurrent
	// writers. The call is safe to retry.
	ErrConcurrentUpdate = errors.New("order modified concurrently, retry")
	// ErrStoreUnavailable wraps transient backing-store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
