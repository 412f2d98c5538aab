// Package services defines the business logic for coupon redemption, coupon
// issuance, the deal catalog, and Stripe reconciliation. This file
// centralizes service-level error values so that they can be returned
// consistently by service methods and checked by callers.
//
// Redemption outcomes are values (see Outcome), not errors. The errors below
// cover the remaining operations, and translation into user-facing messages
// or HTTP status codes is performed at the handler layer.
package services

import "errors"

// Coupon and catalog errors.
var (
	// ErrCouponNotFound indicates that no coupon with the code exists or that
	// it does not belong to the caller.
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrDealNotFound indicates that the requested deal does not exist.
	ErrDealNotFound = errors.New("deal not found")

	// ErrInvalidCode is returned when a code to issue is blank, too long, or
	// contains control characters.
	ErrInvalidCode = errors.New("invalid coupon code")

	// ErrCodeTaken is returned when issuing a code that is already in the ledger.
	ErrCodeTaken = errors.New("coupon code already issued")

	// ErrEmptyQuery is returned by catalog search for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrInvalidKind is returned when filtering the catalog by an unknown kind.
	ErrInvalidKind = errors.New("deal kind must be brand or discount")
)

// Billing errors.
var (
	// ErrMissingMetadata is returned when a checkout session lacks the
	// metadata needed to apply it (user id, deal id, credit amount).
	ErrMissingMetadata = errors.New("checkout session metadata incomplete")

	// ErrUnknownCustomer is returned when an event refers to a Stripe
	// customer that is not linked to any user and carries no user metadata.
	ErrUnknownCustomer = errors.New("stripe customer not linked to a user")
)
